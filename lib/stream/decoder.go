// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"compress/bzip2"
	"io"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// BlockSize is the fixed transfer unit of the write pipeline: the
// chunk size suggested to clients and the maximum size of one media
// write. Protocol constant.
const BlockSize = 64 * 1024

// Result is the outcome of one Write call.
type Result int

const (
	// ResultNeedInput: the chunk was fully consumed and the decoder
	// is waiting for the next one.
	ResultNeedInput Result = iota

	// ResultYield: the deadline fired while decoded data or unfed
	// input remains. Call Write again with an empty chunk to resume
	// draining.
	ResultYield

	// ResultError: the compressed stream is malformed or the sink
	// rejected a write. The decoder is unusable afterwards.
	ResultError
)

// Sink receives decoded blocks, each at most BlockSize long. A sink
// error aborts the Write call with ResultError.
type Sink func(block []byte) error

// openFunc wraps a source of compressed bytes in a decompressor. The
// returned cleanup func (may be nil) releases decompressor resources.
type openFunc func(source io.Reader) (io.Reader, func(), error)

// Decoder is a resumable streaming decompressor. It is not safe for
// concurrent use; the agent serializes all pipeline calls.
type Decoder struct {
	input   chan []byte
	blocks  chan []byte
	need    chan struct{}
	failure chan error
	quit    chan struct{}

	// pending holds input that could not be fed before the deadline
	// fired. Consumed by the next Write call.
	pending []byte

	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

// NewGzip returns a Decoder for gzip-framed payloads. Concatenated
// gzip streams decode as one sequence.
func NewGzip() *Decoder {
	return newDecoder(func(source io.Reader) (io.Reader, func(), error) {
		reader, err := gzip.NewReader(source)
		if err != nil {
			return nil, nil, err
		}
		return reader, func() { reader.Close() }, nil
	})
}

// NewBzip2 returns a Decoder for bzip2-framed payloads. Concatenated
// bzip2 streams decode as one sequence.
func NewBzip2() *Decoder {
	return newDecoder(func(source io.Reader) (io.Reader, func(), error) {
		return bzip2.NewReader(source), nil, nil
	})
}

// NewZstd returns a Decoder for zstd-framed payloads.
func NewZstd() *Decoder {
	return newDecoder(func(source io.Reader) (io.Reader, func(), error) {
		reader, err := zstd.NewReader(source, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, nil, err
		}
		return reader, reader.Close, nil
	})
}

// NewLZ4 returns a Decoder for lz4-framed payloads.
func NewLZ4() *Decoder {
	return newDecoder(func(source io.Reader) (io.Reader, func(), error) {
		return lz4.NewReader(source), nil, nil
	})
}

func newDecoder(open openFunc) *Decoder {
	decoder := &Decoder{
		input:   make(chan []byte),
		blocks:  make(chan []byte),
		need:    make(chan struct{}),
		failure: make(chan error, 1),
		quit:    make(chan struct{}),
	}
	go decoder.run(open)
	return decoder
}

// Write feeds one compressed chunk and drains decoded blocks to sink.
// An empty chunk feeds nothing new: it resumes draining whatever the
// decoder already holds (the empty-buffer "continue" convention).
//
// The deadline channel bounds how long the call may run; a nil
// deadline never fires. Write returns as soon as the decoder needs
// more input, the deadline fires, or an error occurs.
func (d *Decoder) Write(data []byte, sink Sink, deadline <-chan time.Time) Result {
	if d.Err() != nil {
		return ResultError
	}

	// Recombine input cached by an earlier deadline yield.
	if len(data) == 0 {
		data = d.pending
		d.pending = nil
	} else if len(d.pending) > 0 {
		data = append(d.pending, data...)
		d.pending = nil
	}

	// Feed phase: hand the chunk to the decoder goroutine while
	// continuing to service the blocks it produces.
	for len(data) > 0 {
		select {
		case d.input <- data:
			data = nil
		case block := <-d.blocks:
			if err := sink(block); err != nil {
				d.recordError(err)
				return ResultError
			}
		case <-d.need:
			// The source is waiting for input we are about to
			// deliver; loop so the input send can rendezvous.
		case err := <-d.failure:
			d.recordError(err)
			return ResultError
		case <-d.quit:
			return ResultError
		case <-deadline:
			d.pending = data
			return ResultYield
		}
	}

	// Drain phase: keep writing decoded blocks until the decoder
	// genuinely runs out of buffered input.
	for {
		select {
		case block := <-d.blocks:
			if err := sink(block); err != nil {
				d.recordError(err)
				return ResultError
			}
		case <-d.need:
			return ResultNeedInput
		case err := <-d.failure:
			d.recordError(err)
			return ResultError
		case <-d.quit:
			return ResultError
		case <-deadline:
			return ResultYield
		}
	}
}

// Close tears down the decoder goroutine. Safe to call multiple
// times and while a Write is in flight.
func (d *Decoder) Close() {
	d.closeOnce.Do(func() { close(d.quit) })
}

// Err returns the first error the decoder or a sink reported, or nil.
func (d *Decoder) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.err
}

func (d *Decoder) recordError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err == nil {
		d.err = err
	}
}

// run owns the decompressor. It reopens the decompressor whenever a
// stream ends with source bytes left over, which is how concatenated
// multi-stream payloads decode without caller involvement.
func (d *Decoder) run(open openFunc) {
	source := &chunkSource{decoder: d}
	for {
		if source.exhausted {
			return
		}
		reader, cleanup, err := open(source)
		if err != nil {
			d.fail(err)
			return
		}
		finished := d.decode(reader)
		if cleanup != nil {
			cleanup()
		}
		if finished {
			return
		}
	}
}

// decode pumps one decompressor until it reports end of stream
// (returns false: the caller may reopen) or the decoder is done for
// good (returns true).
func (d *Decoder) decode(reader io.Reader) bool {
	buffer := make([]byte, BlockSize)
	for {
		n, err := reader.Read(buffer)
		if n > 0 {
			block := make([]byte, n)
			copy(block, buffer[:n])
			select {
			case d.blocks <- block:
			case <-d.quit:
				return true
			}
		}
		if err == io.EOF {
			return false
		}
		if err != nil {
			d.fail(err)
			return true
		}
	}
}

// fail reports a decode error unless the decoder is being torn down,
// in which case the "error" is just the torn-down source.
func (d *Decoder) fail(err error) {
	select {
	case <-d.quit:
		return
	default:
	}
	d.recordError(err)
	select {
	case d.failure <- err:
	case <-d.quit:
	}
}

// chunkSource adapts the input channel to io.Reader for the
// decompressor. Before blocking for input it rendezvouses on the
// need channel, which is how Write learns the decoder has consumed
// everything it was given.
type chunkSource struct {
	decoder   *Decoder
	current   []byte
	exhausted bool
}

func (s *chunkSource) Read(p []byte) (int, error) {
	for len(s.current) == 0 {
		select {
		case s.decoder.need <- struct{}{}:
		case <-s.decoder.quit:
			s.exhausted = true
			return 0, io.EOF
		}
		select {
		case chunk := <-s.decoder.input:
			s.current = chunk
		case <-s.decoder.quit:
			s.exhausted = true
			return 0, io.EOF
		}
	}
	n := copy(p, s.current)
	s.current = s.current[n:]
	return n, nil
}
