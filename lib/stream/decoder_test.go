// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// collectSink appends every decoded block to a buffer and checks the
// per-block size bound.
func collectSink(t *testing.T, output *bytes.Buffer) Sink {
	return func(block []byte) error {
		t.Helper()
		if len(block) > BlockSize {
			t.Fatalf("sink received %d bytes, exceeding BlockSize %d", len(block), BlockSize)
		}
		output.Write(block)
		return nil
	}
}

// feed delivers payload to the decoder in fragments of the given
// size, following the client protocol: each fragment is sent when the
// decoder asks for input.
func feed(t *testing.T, decoder *Decoder, payload []byte, fragment int, sink Sink) {
	t.Helper()
	for offset := 0; offset < len(payload); offset += fragment {
		end := offset + fragment
		if end > len(payload) {
			end = len(payload)
		}
		result := decoder.Write(payload[offset:end], sink, nil)
		if result != ResultNeedInput {
			t.Fatalf("Write(fragment at %d) = %v, want ResultNeedInput", offset, result)
		}
	}
}

// testPayload is compressible but not trivial.
func testPayload(size int) []byte {
	random := rand.New(rand.NewSource(42))
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte(random.Intn(97))
	}
	return payload
}

func compressGzip(t *testing.T, data []byte) []byte {
	t.Helper()
	var buffer bytes.Buffer
	writer := gzip.NewWriter(&buffer)
	if _, err := writer.Write(data); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buffer.Bytes()
}

func compressZstd(t *testing.T, data []byte) []byte {
	t.Helper()
	var buffer bytes.Buffer
	writer, err := zstd.NewWriter(&buffer)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	if _, err := writer.Write(data); err != nil {
		t.Fatalf("zstd write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("zstd close: %v", err)
	}
	return buffer.Bytes()
}

func compressLZ4(t *testing.T, data []byte) []byte {
	t.Helper()
	var buffer bytes.Buffer
	writer := lz4.NewWriter(&buffer)
	if _, err := writer.Write(data); err != nil {
		t.Fatalf("lz4 write: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("lz4 close: %v", err)
	}
	return buffer.Bytes()
}

func readFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("reading fixture %s: %v", name, err)
	}
	return data
}

func TestGzipRoundTripFragmentSizes(t *testing.T) {
	payload := testPayload(300 * 1024)
	compressed := compressGzip(t, payload)

	for _, fragment := range []int{1, 7, 4096, len(compressed)} {
		decoder := NewGzip()
		var output bytes.Buffer
		feed(t, decoder, compressed, fragment, collectSink(t, &output))
		decoder.Close()

		if !bytes.Equal(output.Bytes(), payload) {
			t.Fatalf("fragment size %d: decoded %d bytes, want %d byte round trip",
				fragment, output.Len(), len(payload))
		}
	}
}

func TestZstdRoundTrip(t *testing.T) {
	payload := testPayload(200 * 1024)
	compressed := compressZstd(t, payload)

	decoder := NewZstd()
	defer decoder.Close()
	var output bytes.Buffer
	feed(t, decoder, compressed, 4096, collectSink(t, &output))

	if !bytes.Equal(output.Bytes(), payload) {
		t.Fatalf("decoded %d bytes, want %d byte round trip", output.Len(), len(payload))
	}
}

func TestLZ4RoundTrip(t *testing.T) {
	payload := testPayload(200 * 1024)
	compressed := compressLZ4(t, payload)

	decoder := NewLZ4()
	defer decoder.Close()
	var output bytes.Buffer
	feed(t, decoder, compressed, 4096, collectSink(t, &output))

	if !bytes.Equal(output.Bytes(), payload) {
		t.Fatalf("decoded %d bytes, want %d byte round trip", output.Len(), len(payload))
	}
}

func TestBzip2RoundTrip(t *testing.T) {
	compressed := readFixture(t, "large.bz2")
	payload := readFixture(t, "large.bin")

	for _, fragment := range []int{1, 4096, len(compressed)} {
		decoder := NewBzip2()
		var output bytes.Buffer
		feed(t, decoder, compressed, fragment, collectSink(t, &output))
		decoder.Close()

		if !bytes.Equal(output.Bytes(), payload) {
			t.Fatalf("fragment size %d: decoded %d bytes, want %d byte round trip",
				fragment, output.Len(), len(payload))
		}
	}
}

func TestBzip2MultiStream(t *testing.T) {
	// Two independently compressed streams concatenated end to end
	// must decode to the concatenation of both contents, with no
	// caller-visible seam.
	compressed := append(readFixture(t, "alpha.bz2"), readFixture(t, "beta.bz2")...)
	want := append(readFixture(t, "alpha.txt"), readFixture(t, "beta.txt")...)

	for _, fragment := range []int{1, len(compressed)} {
		decoder := NewBzip2()
		var output bytes.Buffer
		feed(t, decoder, compressed, fragment, collectSink(t, &output))
		decoder.Close()

		if !bytes.Equal(output.Bytes(), want) {
			t.Fatalf("fragment size %d: multi-stream decode = %q, want %q",
				fragment, output.Bytes(), want)
		}
	}
}

func TestGzipMultiStream(t *testing.T) {
	first := []byte("first gzip member\n")
	second := []byte("second gzip member\n")
	compressed := append(compressGzip(t, first), compressGzip(t, second)...)

	decoder := NewGzip()
	defer decoder.Close()
	var output bytes.Buffer
	feed(t, decoder, compressed, 5, collectSink(t, &output))

	want := append(append([]byte(nil), first...), second...)
	if !bytes.Equal(output.Bytes(), want) {
		t.Fatalf("multi-stream decode = %q, want %q", output.Bytes(), want)
	}
}

func TestDeadlineYieldsAndResumes(t *testing.T) {
	payload := testPayload(512 * 1024)
	compressed := compressGzip(t, payload)

	decoder := NewGzip()
	defer decoder.Close()
	var output bytes.Buffer
	sink := collectSink(t, &output)

	// An already-fired deadline forces the call to yield instead of
	// draining to completion; the client then sends empty chunks to
	// resume, exactly as a remote flasher does between heartbeats.
	firedDeadline := func() <-chan time.Time {
		deadline := make(chan time.Time, 1)
		deadline <- time.Now()
		return deadline
	}

	sawYield := false
	result := decoder.Write(compressed, sink, firedDeadline())
	for iterations := 0; result == ResultYield; iterations++ {
		sawYield = true
		if iterations > 100000 {
			t.Fatal("decoder made no progress under a firing deadline")
		}
		result = decoder.Write(nil, sink, firedDeadline())
	}
	if result != ResultNeedInput {
		t.Fatalf("final Write = %v, want ResultNeedInput", result)
	}
	if !sawYield {
		t.Fatal("expected at least one yield with a fired deadline")
	}
	if !bytes.Equal(output.Bytes(), payload) {
		t.Fatalf("decoded %d bytes, want %d byte round trip", output.Len(), len(payload))
	}
}

func TestMalformedStreamFails(t *testing.T) {
	decoder := NewGzip()
	defer decoder.Close()

	garbage := []byte("this is not a gzip stream at all, not even close")
	var output bytes.Buffer
	if result := decoder.Write(garbage, collectSink(t, &output), nil); result != ResultError {
		t.Fatalf("Write(garbage) = %v, want ResultError", result)
	}
	if decoder.Err() == nil {
		t.Fatal("Err() should report the decode failure")
	}

	// The decoder stays failed.
	if result := decoder.Write([]byte("more"), collectSink(t, &output), nil); result != ResultError {
		t.Fatal("a failed decoder must keep reporting ResultError")
	}
}

func TestSinkFailureAborts(t *testing.T) {
	payload := testPayload(64 * 1024)
	compressed := compressGzip(t, payload)

	decoder := NewGzip()
	defer decoder.Close()

	calls := 0
	sink := func(block []byte) error {
		calls++
		return os.ErrClosed
	}
	if result := decoder.Write(compressed, sink, nil); result != ResultError {
		t.Fatalf("Write with failing sink = %v, want ResultError", result)
	}
	if calls == 0 {
		t.Fatal("sink was never invoked")
	}
}

func TestCloseUnblocksDecoder(t *testing.T) {
	decoder := NewGzip()
	decoder.Close()

	// After Close, writes fail rather than hang.
	done := make(chan Result, 1)
	go func() {
		done <- decoder.Write([]byte("data"), func([]byte) error { return nil }, nil)
	}()
	select {
	case result := <-done:
		if result != ResultError {
			t.Fatalf("Write after Close = %v, want ResultError", result)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Write after Close hung")
	}
}
