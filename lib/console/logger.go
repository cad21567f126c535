// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package console

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bureau-foundation/bench/lib/clock"
	"github.com/bureau-foundation/bench/lib/driver"
)

// defaultCapacity bounds the line ring. Oldest lines are dropped
// when the ring is full.
const defaultCapacity = 1000

// Logger captures console output line by line. A pump goroutine
// reads the console driver continuously; while paused, captured
// output is discarded rather than buffered so a powered-off target's
// line noise does not pollute the log.
type Logger struct {
	device driver.Console
	clock  clock.Clock
	logger *slog.Logger

	mu         sync.Mutex
	lines      []string
	partial    []byte
	paused     bool
	timestamps bool
	timerBase  time.Time
	capacity   int

	pumpDone chan struct{}
	started  bool
}

// NewLogger wraps the given console device. Call Start to open the
// device and begin capture.
func NewLogger(device driver.Console, clk clock.Clock, logger *slog.Logger) *Logger {
	return &Logger{
		device:   device,
		clock:    clk,
		logger:   logger,
		capacity: defaultCapacity,
	}
}

// Start opens the console device and starts the capture pump.
func (l *Logger) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return nil
	}
	if err := l.device.Open(); err != nil {
		return fmt.Errorf("opening console: %w", err)
	}
	l.timerBase = l.clock.Now()
	l.pumpDone = make(chan struct{})
	l.started = true
	go l.pump()
	return nil
}

// Stop closes the console device and waits for the pump to exit.
func (l *Logger) Stop() {
	l.mu.Lock()
	if !l.started {
		l.mu.Unlock()
		return
	}
	l.started = false
	done := l.pumpDone
	l.mu.Unlock()

	l.device.Close()
	<-done
}

// pump reads the console device until it fails or is closed,
// splitting output into lines.
func (l *Logger) pump() {
	defer close(l.pumpDone)
	buffer := make([]byte, 4096)
	for {
		n, err := l.device.Read(buffer)
		if n > 0 {
			l.ingest(buffer[:n])
		}
		if err != nil {
			l.mu.Lock()
			stillRunning := l.started
			l.mu.Unlock()
			if stillRunning {
				l.logger.Error("console read failed", "error", err)
			}
			return
		}
	}
}

// ingest appends raw console output to the ring, completing lines at
// newline boundaries. Output arriving while paused is discarded.
func (l *Logger) ingest(data []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.paused {
		return
	}
	l.partial = append(l.partial, data...)
	for {
		index := bytes.IndexByte(l.partial, '\n')
		if index < 0 {
			return
		}
		line := strings.TrimRight(string(l.partial[:index]), "\r")
		l.partial = l.partial[index+1:]
		l.appendLine(line)
	}
}

// appendLine adds one completed line, applying the elapsed-time
// prefix when timestamps are enabled. Caller holds l.mu.
func (l *Logger) appendLine(line string) {
	if l.timestamps {
		elapsed := l.clock.Now().Sub(l.timerBase)
		line = fmt.Sprintf("[%8.3f] %s", elapsed.Seconds(), line)
	}
	l.lines = append(l.lines, line)
	if len(l.lines) > l.capacity {
		l.lines = l.lines[len(l.lines)-l.capacity:]
	}
}

// Pause suspends capture. Invoked by the power state machine when
// the target powers off.
func (l *Logger) Pause() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paused = true
	l.partial = nil
}

// Resume re-enables capture. Invoked when the target powers on.
func (l *Logger) Resume() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paused = false
}

// ResetTimer rebases the elapsed-time prefix. Invoked on power-off
// so the next boot's log starts at zero.
func (l *Logger) ResetTimer() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timerBase = l.clock.Now()
}

// ToggleTimestamps flips the elapsed-time prefix and returns the new
// setting.
func (l *Logger) ToggleTimestamps() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timestamps = !l.timestamps
	return l.timestamps
}

// Clear discards all captured lines and returns how many were
// dropped.
func (l *Logger) Clear() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	dropped := len(l.lines)
	l.lines = nil
	return dropped
}

// Head removes and returns the oldest captured line. Returns the
// empty string when no complete line is buffered.
func (l *Logger) Head() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.lines) == 0 {
		return ""
	}
	line := l.lines[0]
	l.lines = l.lines[1:]
	return line
}

// Lines returns the number of complete lines currently buffered.
func (l *Logger) Lines() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.lines)
}

// Tail returns the newest captured line without removing it.
func (l *Logger) Tail() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.lines) == 0 {
		return ""
	}
	return l.lines[len(l.lines)-1]
}

// Print injects a line into the capture buffer as if the target had
// emitted it. Used for operator annotations in the log.
func (l *Logger) Print(text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.appendLine(text)
}

// Send writes data to the target's console input.
func (l *Logger) Send(data []byte) (int, error) {
	return l.device.Write(data)
}
