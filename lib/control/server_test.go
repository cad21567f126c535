// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/bureau-foundation/bench/lib/agent"
	"github.com/bureau-foundation/bench/lib/codec"
	"github.com/bureau-foundation/bench/lib/driver"
	"github.com/bureau-foundation/bench/lib/driver/drivertest"
	"github.com/bureau-foundation/bench/lib/stream"
)

// startServer runs a control server over fake hardware and returns
// its socket path and the mux fake for inspection.
func startServer(t *testing.T) (string, *drivertest.SDMux) {
	t.Helper()

	power := &drivertest.Power{}
	mux := &drivertest.SDMux{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := agent.New(agent.Params{
		Power:  power,
		SDMux:  mux,
		Logger: logger,
	})

	socketPath := filepath.Join(t.TempDir(), "bench.sock")
	server := NewServer(socketPath, a, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Serve: %v", err)
		}
	})

	// Wait for the listener to come up.
	deadline := time.Now().Add(5 * time.Second)
	for {
		conn, err := net.Dial("unix", socketPath)
		if err == nil {
			conn.Close()
			return socketPath, mux
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start listening: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestLeaseOverSocket(t *testing.T) {
	socketPath, _ := startServer(t)
	ctx := context.Background()
	alice := NewClient(socketPath, "alice")
	bob := NewClient(socketPath, "bob")

	if ok, err := alice.Lock(ctx); err != nil || !ok {
		t.Fatalf("alice Lock = %v, %v", ok, err)
	}
	if ok, err := bob.Lock(ctx); err != nil || ok {
		t.Fatalf("bob Lock = %v, %v, want a denial", ok, err)
	}
	if owner, err := bob.Owner(ctx); err != nil || owner != "alice" {
		t.Fatalf("Owner = %q, %v", owner, err)
	}

	// The lease gates power mutations across the wire.
	if ok, err := bob.PowerOn(ctx); err != nil || ok {
		t.Fatalf("bob PowerOn = %v, %v, want a denial", ok, err)
	}
	if got, err := bob.PowerToggle(ctx); err != nil || got != agent.PowerLockedState {
		t.Fatalf("bob PowerToggle = %q, %v, want %q", got, err, agent.PowerLockedState)
	}
	if ok, err := alice.PowerOn(ctx); err != nil || !ok {
		t.Fatalf("alice PowerOn = %v, %v", ok, err)
	}
	if got, err := bob.PowerStatus(ctx); err != nil || got != driver.PowerOn {
		t.Fatalf("PowerStatus = %q, %v", got, err)
	}
}

func TestStorageWriteOverSocket(t *testing.T) {
	socketPath, mux := startServer(t)
	ctx := context.Background()
	client := NewClient(socketPath, "flasher")

	image := bytes.Repeat([]byte("bench storage image content\n"), 4096)
	var compressed bytes.Buffer
	writer := gzip.NewWriter(&compressed)
	if _, err := writer.Write(image); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	if ok, err := client.StorageOpen(ctx); err != nil || !ok {
		t.Fatalf("StorageOpen = %v, %v", ok, err)
	}

	payload := compressed.Bytes()
	for offset := 0; offset < len(payload); {
		end := offset + stream.BlockSize
		if end > len(payload) {
			end = len(payload)
		}
		status, err := client.StorageWrite(ctx, "gz", payload[offset:end])
		if err != nil {
			t.Fatalf("StorageWrite at %d: %v", offset, err)
		}
		switch status {
		case stream.BlockSize:
			offset = end
		case 0:
			// Yield: continue draining with an empty chunk.
			if _, err := client.StorageWrite(ctx, "gz", nil); err != nil {
				t.Fatalf("resume write: %v", err)
			}
		default:
			t.Fatalf("StorageWrite status = %d", status)
		}
	}

	if ok, err := client.StorageClose(ctx); err != nil || !ok {
		t.Fatalf("StorageClose = %v, %v", ok, err)
	}
	if !bytes.Equal(mux.Written(), image) {
		t.Fatalf("media holds %d bytes, want %d decompressed bytes", len(mux.Written()), len(image))
	}
	if written, err := client.StorageBytesWritten(ctx); err != nil || written != uint64(len(image)) {
		t.Fatalf("StorageBytesWritten = %d, %v, want %d", written, err, len(image))
	}
	if sum, err := client.StorageChecksum(ctx); err != nil || len(sum) != 64 {
		t.Fatalf("StorageChecksum = %q, %v, want a 64-char hex digest", sum, err)
	}
}

func TestUnknownAction(t *testing.T) {
	socketPath, _ := startServer(t)
	client := NewClient(socketPath, "")

	err := client.call(context.Background(), request{Action: "target-eject"}, nil)
	var protocolErr *ProtocolError
	if !errors.As(err, &protocolErr) {
		t.Fatalf("err = %v, want a ProtocolError", err)
	}
	if protocolErr.Action != "target-eject" {
		t.Fatalf("ProtocolError.Action = %q", protocolErr.Action)
	}
}

func TestMissingAction(t *testing.T) {
	socketPath, _ := startServer(t)

	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if err := codec.NewEncoder(conn).Encode(map[string]any{"session": "x"}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	conn.(*net.UnixConn).CloseWrite()

	var response Response
	if err := codec.NewDecoder(conn).Decode(&response); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if response.OK || response.Error == "" {
		t.Fatalf("response = %+v, want an error about the missing action", response)
	}
}

func TestServeRemovesStaleSocket(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "stale.sock")
	if err := os.WriteFile(socketPath, nil, 0o600); err != nil {
		t.Fatalf("creating stale socket file: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	server := NewServer(socketPath, agent.New(agent.Params{Logger: logger}), logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		conn, err := net.Dial("unix", socketPath)
		if err == nil {
			conn.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not replace the stale socket: %v", err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Serve: %v", err)
	}
	if _, err := os.Stat(socketPath); !os.IsNotExist(err) {
		t.Fatal("socket file should be removed on shutdown")
	}
}
