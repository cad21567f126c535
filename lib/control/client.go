// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/bureau-foundation/bench/lib/codec"
)

// dialTimeout covers only the connect phase; the server's own
// timeouts govern the rest of the exchange.
const dialTimeout = 5 * time.Second

// responseReadTimeout is how long the client waits for a response
// after writing the request. Sized to the server's read and write
// timeouts plus handler execution time, which the streaming write
// pipeline bounds with its feedback interval.
const responseReadTimeout = 45 * time.Second

// maxResponseSize matches the server's maxRequestSize for symmetry.
const maxResponseSize = 1024 * 1024

// ProtocolError is returned when the server responds with ok=false:
// the request was malformed or named an unknown action.
type ProtocolError struct {
	Action  string
	Message string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("control error on %q: %s", e.Action, e.Message)
}

// Client drives a bench agent over its control socket. Each call
// opens a new connection, matching the server's one-request-per-
// connection model. The session token identifies the caller to the
// lease manager on every request.
type Client struct {
	socketPath string
	session    string
}

// NewClient creates a client for the control socket at socketPath,
// presenting the given session token. An empty session is anonymous:
// it can operate a free agent but never owns the lease.
func NewClient(socketPath, session string) *Client {
	return &Client{socketPath: socketPath, session: session}
}

// call sends one request and decodes the response data into result.
func (c *Client) call(ctx context.Context, req request, result any) error {
	req.Session = c.session

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", c.socketPath, err)
	}
	defer conn.Close()

	if err := codec.NewEncoder(conn).Encode(req); err != nil {
		return fmt.Errorf("writing %q request: %w", req.Action, err)
	}

	// Half-close the write side so the server's read sees EOF
	// cleanly.
	if unixConn, ok := conn.(*net.UnixConn); ok {
		unixConn.CloseWrite()
	}

	conn.SetReadDeadline(time.Now().Add(responseReadTimeout))
	var response Response
	if err := codec.NewDecoder(io.LimitReader(conn, maxResponseSize)).Decode(&response); err != nil {
		return fmt.Errorf("reading %q response: %w", req.Action, err)
	}

	if !response.OK {
		return &ProtocolError{Action: req.Action, Message: response.Error}
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("decoding %q response data: %w", req.Action, err)
		}
	}
	return nil
}

func (c *Client) callBool(ctx context.Context, req request) (bool, error) {
	var result bool
	err := c.call(ctx, req, &result)
	return result, err
}

func (c *Client) callInt(ctx context.Context, req request) (int, error) {
	var result int
	err := c.call(ctx, req, &result)
	return result, err
}

func (c *Client) callUint(ctx context.Context, req request) (uint64, error) {
	var result uint64
	err := c.call(ctx, req, &result)
	return result, err
}

func (c *Client) callString(ctx context.Context, req request) (string, error) {
	var result string
	err := c.call(ctx, req, &result)
	return result, err
}

// Lock acquires or refreshes the target lease.
func (c *Client) Lock(ctx context.Context) (bool, error) {
	return c.callBool(ctx, request{Action: "target-lock"})
}

// Unlock releases the target lease.
func (c *Client) Unlock(ctx context.Context) (bool, error) {
	return c.callBool(ctx, request{Action: "target-unlock"})
}

// Locked reports whether another session's lease locks this one out.
func (c *Client) Locked(ctx context.Context) (bool, error) {
	return c.callBool(ctx, request{Action: "target-locked"})
}

// Owner returns the lease owner, empty when free.
func (c *Client) Owner(ctx context.Context) (string, error) {
	return c.callString(ctx, request{Action: "target-owner"})
}

// PowerOn powers the target on.
func (c *Client) PowerOn(ctx context.Context) (bool, error) {
	return c.callBool(ctx, request{Action: "power-on"})
}

// PowerOff powers the target off.
func (c *Client) PowerOff(ctx context.Context) (bool, error) {
	return c.callBool(ctx, request{Action: "power-off"})
}

// PowerToggle flips the target's power and returns the new state.
func (c *Client) PowerToggle(ctx context.Context) (string, error) {
	return c.callString(ctx, request{Action: "power-toggle"})
}

// PowerStatus returns the target's power state.
func (c *Client) PowerStatus(ctx context.Context) (string, error) {
	return c.callString(ctx, request{Action: "power-status"})
}

// StorageStatus returns the media position.
func (c *Client) StorageStatus(ctx context.Context) (string, error) {
	return c.callString(ctx, request{Action: "storage-status"})
}

// StorageOpen starts a write session on the media.
func (c *Client) StorageOpen(ctx context.Context) (bool, error) {
	return c.callBool(ctx, request{Action: "storage-open"})
}

// StorageClose ends the write session.
func (c *Client) StorageClose(ctx context.Context) (bool, error) {
	return c.callBool(ctx, request{Action: "storage-close"})
}

// StorageMount mounts a partition of the media on the host.
func (c *Client) StorageMount(ctx context.Context, partition string) (bool, error) {
	return c.callBool(ctx, request{Action: "storage-mount", Partition: partition})
}

// StorageToHost attaches the media to the host.
func (c *Client) StorageToHost(ctx context.Context) (bool, error) {
	return c.callBool(ctx, request{Action: "storage-to-host"})
}

// StorageToTarget attaches the media to the target.
func (c *Client) StorageToTarget(ctx context.Context) (bool, error) {
	return c.callBool(ctx, request{Action: "storage-to-target"})
}

// StorageToggle swaps the media and returns the resulting position.
func (c *Client) StorageToggle(ctx context.Context) (string, error) {
	return c.callString(ctx, request{Action: "storage-toggle"})
}

// StorageBytesWritten returns the decoded bytes written so far.
func (c *Client) StorageBytesWritten(ctx context.Context) (uint64, error) {
	return c.callUint(ctx, request{Action: "storage-bytes-written"})
}

// StorageChecksum returns the digest of the decoded bytes written so
// far.
func (c *Client) StorageChecksum(ctx context.Context) (string, error) {
	return c.callString(ctx, request{Action: "storage-checksum"})
}

// StorageWrite sends one image chunk with the given framing: "raw",
// "gz", "bz2", "zst", or "lz4". The returned status is the suggested
// next chunk size, zero to continue with an empty chunk, or negative
// on failure.
func (c *Client) StorageWrite(ctx context.Context, framing string, chunk []byte) (int, error) {
	return c.callInt(ctx, request{Action: "storage-write-" + framing, Data: chunk})
}

// StorageUpdate writes data at offset within the named file on the
// mounted media.
func (c *Client) StorageUpdate(ctx context.Context, destination string, offset int64, data []byte) (int, error) {
	return c.callInt(ctx, request{
		Action:      "storage-update",
		Destination: destination,
		Offset:      offset,
		Data:        data,
	})
}

// USBCount returns the number of configured USB power switches.
func (c *Client) USBCount(ctx context.Context) (int, error) {
	return c.callInt(ctx, request{Action: "usb-count"})
}

// USBOn powers the 1-indexed port on.
func (c *Client) USBOn(ctx context.Context, index int) (string, error) {
	return c.callString(ctx, request{Action: "usb-on", Index: index})
}

// USBOff powers the 1-indexed port off.
func (c *Client) USBOff(ctx context.Context, index int) (string, error) {
	return c.callString(ctx, request{Action: "usb-off", Index: index})
}

// USBToggle flips the 1-indexed port.
func (c *Client) USBToggle(ctx context.Context, index int) (string, error) {
	return c.callString(ctx, request{Action: "usb-toggle", Index: index})
}

// USBStatus returns the 1-indexed port's state.
func (c *Client) USBStatus(ctx context.Context, index int) (string, error) {
	return c.callString(ctx, request{Action: "usb-status", Index: index})
}

// USBHasClass reports whether a port with the given class exists.
func (c *Client) USBHasClass(ctx context.Context, class string) (bool, error) {
	return c.callBool(ctx, request{Action: "usb-has-class", Class: class})
}

// USBOnByClass powers on the first port with the given class.
func (c *Client) USBOnByClass(ctx context.Context, class string) (bool, error) {
	return c.callBool(ctx, request{Action: "usb-on-by-class", Class: class})
}

// USBOffByClass powers off the first port with the given class.
func (c *Client) USBOffByClass(ctx context.Context, class string) (bool, error) {
	return c.callBool(ctx, request{Action: "usb-off-by-class", Class: class})
}

// ConsoleHead pops the oldest captured console line.
func (c *Client) ConsoleHead(ctx context.Context) (string, error) {
	return c.callString(ctx, request{Action: "console-head"})
}

// ConsoleLines returns the number of buffered console lines.
func (c *Client) ConsoleLines(ctx context.Context) (int, error) {
	return c.callInt(ctx, request{Action: "console-lines"})
}

// ConsoleTail peeks at the newest captured console line.
func (c *Client) ConsoleTail(ctx context.Context) (string, error) {
	return c.callString(ctx, request{Action: "console-tail"})
}

// ConsoleClear discards the captured log, returning the number of
// dropped lines.
func (c *Client) ConsoleClear(ctx context.Context) (int, error) {
	return c.callInt(ctx, request{Action: "console-clear"})
}

// ConsolePrint injects an annotation line into the captured log.
func (c *Client) ConsolePrint(ctx context.Context, text string) (bool, error) {
	return c.callBool(ctx, request{Action: "console-print", Text: text})
}

// ConsoleSend writes data to the target's console input.
func (c *Client) ConsoleSend(ctx context.Context, data []byte) (int, error) {
	return c.callInt(ctx, request{Action: "console-send", Data: data})
}

// ConsoleToggleTimestamps flips the elapsed-time prefix on captured
// lines.
func (c *Client) ConsoleToggleTimestamps(ctx context.Context) (bool, error) {
	return c.callBool(ctx, request{Action: "console-timestamps"})
}
