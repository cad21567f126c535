// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/bureau-foundation/bench/lib/agent"
	"github.com/bureau-foundation/bench/lib/codec"
)

// Response is the wire-format envelope for all control protocol
// responses. The agent's sentinel result travels in Data; Error is
// reserved for malformed requests and unknown actions.
type Response struct {
	OK    bool             `cbor:"ok"`
	Error string           `cbor:"error,omitempty"`
	Data  codec.RawMessage `cbor:"data,omitempty"`
}

// request is the decoded union of all action parameters. Every action
// reads the fields it needs and ignores the rest.
type request struct {
	Action      string `cbor:"action"`
	Session     string `cbor:"session,omitempty"`
	Data        []byte `cbor:"data,omitempty"`
	Index       int    `cbor:"index,omitempty"`
	Class       string `cbor:"class,omitempty"`
	Partition   string `cbor:"partition,omitempty"`
	Destination string `cbor:"destination,omitempty"`
	Offset      int64  `cbor:"offset,omitempty"`
	Text        string `cbor:"text,omitempty"`
}

// actionFunc executes one agent operation and returns the value for
// the response's data field.
type actionFunc func(req *request) any

// readTimeout is how long the server waits for the client's request.
// A well-behaved client sends the request immediately after
// connecting.
const readTimeout = 30 * time.Second

// writeTimeout is how long the server waits for the response write.
const writeTimeout = 10 * time.Second

// maxRequestSize bounds a single CBOR request. Streaming write chunks
// are 64 KiB, so 1 MB leaves ample headroom.
const maxRequestSize = 1024 * 1024

// Server serves the control protocol on a unix socket, dispatching
// every action to the agent.
type Server struct {
	socketPath string
	agent      *agent.Agent
	logger     *slog.Logger
	handlers   map[string]actionFunc

	// activeConnections tracks in-flight request handlers for
	// graceful shutdown. Serve waits for all of them before
	// returning.
	activeConnections sync.WaitGroup
}

// NewServer creates a control server for the given agent, listening
// on socketPath once Serve is called.
func NewServer(socketPath string, a *agent.Agent, logger *slog.Logger) *Server {
	s := &Server{
		socketPath: socketPath,
		agent:      a,
		logger:     logger,
		handlers:   make(map[string]actionFunc),
	}
	s.registerActions()
	return s
}

func (s *Server) handle(action string, handler actionFunc) {
	if _, exists := s.handlers[action]; exists {
		panic(fmt.Sprintf("control.Server: duplicate handler for action %q", action))
	}
	s.handlers[action] = handler
}

// registerActions binds every agent operation to its wire action
// name.
func (s *Server) registerActions() {
	a := s.agent

	s.handle("target-lock", func(r *request) any { return a.Lock(r.Session) })
	s.handle("target-unlock", func(r *request) any { return a.Unlock(r.Session) })
	s.handle("target-locked", func(r *request) any { return a.Locked(r.Session) })
	s.handle("target-owner", func(r *request) any { return a.Owner() })

	s.handle("power-on", func(r *request) any { return a.PowerOn(r.Session) })
	s.handle("power-off", func(r *request) any { return a.PowerOff(r.Session) })
	s.handle("power-toggle", func(r *request) any { return a.PowerToggle(r.Session) })
	s.handle("power-status", func(r *request) any { return a.PowerStatus(r.Session) })

	s.handle("storage-status", func(r *request) any { return a.StorageStatus(r.Session) })
	s.handle("storage-open", func(r *request) any { return a.StorageOpen(r.Session) })
	s.handle("storage-close", func(r *request) any { return a.StorageClose(r.Session) })
	s.handle("storage-mount", func(r *request) any { return a.StorageMount(r.Partition, r.Session) })
	s.handle("storage-to-host", func(r *request) any { return a.StorageToHost(r.Session) })
	s.handle("storage-to-target", func(r *request) any { return a.StorageToTarget(r.Session) })
	s.handle("storage-toggle", func(r *request) any { return a.StorageToggle(r.Session) })
	s.handle("storage-bytes-written", func(r *request) any { return a.StorageBytesWritten(r.Session) })
	s.handle("storage-checksum", func(r *request) any { return a.StorageChecksum(r.Session) })
	s.handle("storage-write-raw", func(r *request) any { return a.StorageWriteRaw(r.Data, r.Session) })
	s.handle("storage-write-gz", func(r *request) any { return a.StorageWriteGzip(r.Data, r.Session) })
	s.handle("storage-write-bz2", func(r *request) any { return a.StorageWriteBzip2(r.Data, r.Session) })
	s.handle("storage-write-zst", func(r *request) any { return a.StorageWriteZstd(r.Data, r.Session) })
	s.handle("storage-write-lz4", func(r *request) any { return a.StorageWriteLZ4(r.Data, r.Session) })
	s.handle("storage-update", func(r *request) any {
		return a.StorageUpdate(r.Destination, r.Offset, r.Data, r.Session)
	})

	s.handle("usb-count", func(r *request) any { return a.USBCount(r.Session) })
	s.handle("usb-on", func(r *request) any { return a.USBOn(r.Index, r.Session) })
	s.handle("usb-off", func(r *request) any { return a.USBOff(r.Index, r.Session) })
	s.handle("usb-toggle", func(r *request) any { return a.USBToggle(r.Index, r.Session) })
	s.handle("usb-status", func(r *request) any { return a.USBStatus(r.Index, r.Session) })
	s.handle("usb-has-class", func(r *request) any { return a.USBHasClass(r.Class, r.Session) })
	s.handle("usb-on-by-class", func(r *request) any { return a.USBOnByClass(r.Class, r.Session) })
	s.handle("usb-off-by-class", func(r *request) any { return a.USBOffByClass(r.Class, r.Session) })

	s.handle("console-head", func(r *request) any { return a.ConsoleHead(r.Session) })
	s.handle("console-lines", func(r *request) any { return a.ConsoleLines(r.Session) })
	s.handle("console-tail", func(r *request) any { return a.ConsoleTail(r.Session) })
	s.handle("console-clear", func(r *request) any { return a.ConsoleClear(r.Session) })
	s.handle("console-print", func(r *request) any { return a.ConsolePrint(r.Text, r.Session) })
	s.handle("console-send", func(r *request) any { return a.ConsoleSend(r.Data, r.Session) })
	s.handle("console-timestamps", func(r *request) any { return a.ConsoleToggleTimestamps(r.Session) })
}

// Serve accepts connections on the unix socket until ctx is
// cancelled, then stops accepting and waits for active handlers to
// complete. Any stale socket file at the configured path is removed
// before listening, and the socket file is removed on return.
func (s *Server) Serve(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing stale socket %s: %w", s.socketPath, err)
	}

	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.socketPath, err)
	}
	defer func() {
		listener.Close()
		os.Remove(s.socketPath)
	}()

	// Unblock Accept when the context is cancelled.
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	s.logger.Info("control server listening", "path", s.socketPath)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			if errors.Is(err, net.ErrClosed) {
				break
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		s.activeConnections.Add(1)
		go func() {
			defer s.activeConnections.Done()
			s.handleConnection(conn)
		}()
	}

	s.activeConnections.Wait()
	return nil
}

// handleConnection processes one request-response cycle.
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(readTimeout))

	// Decode one CBOR value. LimitReader prevents a misbehaving
	// client from exhausting memory.
	var req request
	if err := codec.NewDecoder(io.LimitReader(conn, maxRequestSize)).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			// Client connected but sent nothing.
			return
		}
		s.writeError(conn, fmt.Sprintf("invalid request: %v", err))
		return
	}
	if req.Action == "" {
		s.writeError(conn, "missing required field: action")
		return
	}

	handler, exists := s.handlers[req.Action]
	if !exists {
		s.writeError(conn, fmt.Sprintf("unknown action %q", req.Action))
		return
	}

	s.writeSuccess(conn, handler(&req))
}

// writeError sends {ok: false, error: "..."}. Write failures are
// logged at debug level; the connection is closing regardless.
func (s *Server) writeError(conn net.Conn, message string) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := codec.NewEncoder(conn).Encode(Response{
		OK:    false,
		Error: message,
	}); err != nil {
		s.logger.Debug("failed to write error response", "error", err)
	}
}

// writeSuccess sends {ok: true, data: <cbor>} with the agent's result
// in the data field.
func (s *Server) writeSuccess(conn net.Conn, result any) {
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))

	response := Response{OK: true}
	data, err := codec.Marshal(result)
	if err != nil {
		s.writeError(conn, fmt.Sprintf("internal: marshaling response: %v", err))
		return
	}
	response.Data = data

	if err := codec.NewEncoder(conn).Encode(response); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}
