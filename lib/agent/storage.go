// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"encoding/hex"
	"time"

	"github.com/bureau-foundation/bench/lib/driver"
	"github.com/bureau-foundation/bench/lib/stream"
)

// Streaming write statuses, as seen by clients. A positive value is
// the suggested size of the next chunk (always stream.BlockSize).
const (
	// WriteStatusContinue: send the next chunk, or an empty chunk to
	// let the agent continue draining buffered data.
	WriteStatusContinue = 0

	// WriteStatusError: no mux driver, a malformed stream, or a
	// failed media write.
	WriteStatusError = -1
)

// StorageStatus returns the mux position (HOST/TARGET), or "???"
// when no mux driver is configured. Not lease-gated.
func (a *Agent) StorageStatus(session string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lease.Touch(session)
	return a.muxStatus()
}

func (a *Agent) muxStatus() string {
	if a.mux == nil {
		return driver.SDUnknown
	}
	state, err := a.mux.Status()
	if err != nil {
		a.logger.Error("sdmux status failed", "error", err)
		return driver.SDUnknown
	}
	return state
}

// StorageLocked reports whether a media swap is denied for session.
// A swap needs the lease (or a free lease), a mux driver, a power
// driver, the target powered off, and no open write session.
func (a *Agent) StorageLocked(session string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.storageLocked(session)
}

func (a *Agent) storageLocked(session string) bool {
	if a.lease.LockedFor(session) {
		return true
	}
	// Cannot swap media between host and target without a mux, and a
	// power driver is required to prove the target is off.
	if a.mux == nil || a.power == nil {
		return true
	}
	if a.powerStatus() != driver.PowerOff {
		return true
	}
	if a.opened {
		return true
	}
	return false
}

// StorageOpen starts a write session on the media. Any previous
// write session is closed first; the byte counter and checksum reset
// to a fresh cursor.
func (a *Agent) StorageOpen(session string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lease.Touch(session)
	if a.mux == nil {
		return false
	}
	a.closeWriteSession()
	a.resetCursor()
	if err := a.mux.Open(); err != nil {
		a.logger.Error("sdmux open failed", "error", err)
		a.opened = false
		return false
	}
	a.opened = true
	return true
}

// StorageClose ends the write session, discarding decoder state.
// Idempotent: closing an already-closed session reports success.
func (a *Agent) StorageClose(session string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lease.Touch(session)
	if a.mux == nil {
		return false
	}
	a.closeWriteSession()
	return !a.opened
}

// closeWriteSession discards decoder state and closes the driver's
// write session if one is open. Caller holds a.mu.
func (a *Agent) closeWriteSession() {
	a.dropDecoder()
	if !a.opened {
		return
	}
	if err := a.mux.Close(); err != nil {
		a.logger.Error("sdmux close failed", "error", err)
		return
	}
	a.opened = false
}

func (a *Agent) dropDecoder() {
	if a.decoder != nil {
		a.decoder.Close()
		a.decoder = nil
		a.decoderKind = ""
	}
}

func (a *Agent) resetCursor() {
	a.bytesWritten = 0
	a.checksum.Reset()
}

// StorageMount makes a partition of the media available for
// inspection on the host. A no-op success when already mounted.
func (a *Agent) StorageMount(partition, session string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lease.Touch(session)
	if a.mounted {
		return true
	}
	if a.mux == nil {
		return false
	}
	if err := a.mux.Mount(partition); err != nil {
		a.logger.Error("sdmux mount failed", "partition", partition, "error", err)
		return false
	}
	a.mounted = true
	return true
}

// StorageToHost attaches the media to the host. Denied (false) while
// the swap is locked.
func (a *Agent) StorageToHost(session string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.storageLocked(session) {
		return false
	}
	if err := a.mux.ToHost(); err != nil {
		a.logger.Error("sdmux to-host failed", "error", err)
		return false
	}
	return true
}

// StorageToTarget attaches the media to the test target, closing any
// write session first. Denied (false) while the swap is locked.
func (a *Agent) StorageToTarget(session string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.storageLocked(session) {
		return false
	}
	a.closeWriteSession()
	if err := a.mux.ToTarget(); err != nil {
		a.logger.Error("sdmux to-target failed", "error", err)
		return false
	}
	return true
}

// StorageToggle swaps the media to the other side when the swap is
// permitted, and returns the resulting position either way.
func (a *Agent) StorageToggle(session string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.storageLocked(session) {
		switch a.muxStatus() {
		case driver.SDOnHost:
			a.closeWriteSession()
			if err := a.mux.ToTarget(); err != nil {
				a.logger.Error("sdmux to-target failed", "error", err)
			}
		case driver.SDOnTarget:
			if err := a.mux.ToHost(); err != nil {
				a.logger.Error("sdmux to-host failed", "error", err)
			}
		}
	}
	return a.muxStatus()
}

// StorageBytesWritten returns the number of decoded bytes written to
// the media in the current open/close bracket. Read-only telemetry;
// not lease-gated.
func (a *Agent) StorageBytesWritten(session string) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lease.Touch(session)
	return a.bytesWritten
}

// StorageChecksum returns the hex blake3 digest of all decoded bytes
// written in the current open/close bracket. Clients compare it with
// the digest of the source image to verify a flash.
func (a *Agent) StorageChecksum(session string) string {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lease.Touch(session)
	return hex.EncodeToString(a.checksum.Sum(nil))
}

// StorageWriteRaw writes one uncompressed chunk to the media.
// Returns the suggested next chunk size, or WriteStatusError.
func (a *Agent) StorageWriteRaw(data []byte, session string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lease.Touch(session)
	if a.mux == nil {
		return WriteStatusError
	}
	if err := a.sinkBlock(data); err != nil {
		a.logger.Error("media write failed", "error", err)
		return WriteStatusError
	}
	return stream.BlockSize
}

// StorageWriteGzip feeds one chunk of a gzip-framed image to the
// write pipeline.
func (a *Agent) StorageWriteGzip(data []byte, session string) int {
	return a.writeCompressed("gzip", stream.NewGzip, data, session)
}

// StorageWriteBzip2 feeds one chunk of a bzip2-framed image to the
// write pipeline. Concatenated multi-stream payloads decode with no
// caller-visible seam.
func (a *Agent) StorageWriteBzip2(data []byte, session string) int {
	return a.writeCompressed("bzip2", stream.NewBzip2, data, session)
}

// StorageWriteZstd feeds one chunk of a zstd-framed image to the
// write pipeline.
func (a *Agent) StorageWriteZstd(data []byte, session string) int {
	return a.writeCompressed("zstd", stream.NewZstd, data, session)
}

// StorageWriteLZ4 feeds one chunk of an lz4-framed image to the
// write pipeline.
func (a *Agent) StorageWriteLZ4(data []byte, session string) int {
	return a.writeCompressed("lz4", stream.NewLZ4, data, session)
}

// writeCompressed runs one time-boxed pipeline step: feed the chunk
// (or resume buffered work when the chunk is empty), drain decoded
// blocks to the media, and yield by the feedback deadline so the
// agent stays responsive during large flashes.
func (a *Agent) writeCompressed(kind string, construct func() *stream.Decoder, data []byte, session string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lease.Touch(session)
	if a.mux == nil {
		return WriteStatusError
	}

	// A framing switch mid-session discards the previous decoder.
	if a.decoder == nil || a.decoderKind != kind {
		a.dropDecoder()
		a.decoder = construct()
		a.decoderKind = kind
	}

	var deadline <-chan time.Time
	if a.feedback > 0 {
		deadline = a.clock.After(a.feedback)
	}

	result := a.decoder.Write(data, a.sinkBlock, deadline)
	switch result {
	case stream.ResultNeedInput:
		return stream.BlockSize
	case stream.ResultYield:
		return WriteStatusContinue
	default:
		if err := a.decoder.Err(); err != nil {
			a.logger.Error("streaming write failed", "framing", kind, "error", err)
		}
		return WriteStatusError
	}
}

// sinkBlock writes one decoded block to the media and advances the
// cursor. Caller holds a.mu.
func (a *Agent) sinkBlock(block []byte) error {
	if err := a.mux.Write(block); err != nil {
		return err
	}
	a.bytesWritten += uint64(len(block))
	a.checksum.Write(block)
	return nil
}

// StorageUpdate writes data at offset within the named destination
// file on the mounted media, returning the bytes written or
// WriteStatusError. A write starting at offset 0 resets the cursor.
func (a *Agent) StorageUpdate(destination string, offset int64, data []byte, session string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lease.Touch(session)
	if a.mux == nil {
		return WriteStatusError
	}
	if offset == 0 {
		a.resetCursor()
	}
	n, err := a.mux.Update(destination, offset, data)
	if err != nil {
		a.logger.Error("media update failed", "destination", destination, "error", err)
		return WriteStatusError
	}
	if n > 0 {
		a.bytesWritten += uint64(n)
		a.checksum.Write(data[:n])
	}
	return n
}
