// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package img

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/bureau-foundation/bench/lib/driver"
)

func newTestMux(t *testing.T) (*Mux, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sd.img")
	mux := &Mux{}
	if err := mux.Configure(driver.Options{"path": path}); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if err := mux.Probe(); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	return mux, path
}

func TestWriteSessionRoundTrip(t *testing.T) {
	mux, path := newTestMux(t)

	if err := mux.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	image := bytes.Repeat([]byte("image block "), 1024)
	if err := mux.Write(image[:6000]); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := mux.Write(image[6000:]); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := mux.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	written, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading image: %v", err)
	}
	if !bytes.Equal(written, image) {
		t.Fatalf("image holds %d bytes, want %d byte round trip", len(written), len(image))
	}
}

func TestOpenTruncatesPreviousImage(t *testing.T) {
	mux, path := newTestMux(t)

	mux.Open()
	mux.Write([]byte("a much longer first image"))
	mux.Close()
	mux.Open()
	mux.Write([]byte("short"))
	mux.Close()

	written, _ := os.ReadFile(path)
	if string(written) != "short" {
		t.Fatalf("image = %q, want the second write only", written)
	}
}

func TestWriteWithoutOpenFails(t *testing.T) {
	mux, _ := newTestMux(t)
	if err := mux.Write([]byte("data")); err == nil {
		t.Fatal("Write before Open must fail")
	}
}

func TestFlockExcludesSecondWriter(t *testing.T) {
	first, path := newTestMux(t)
	if err := first.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer first.Close()

	second := &Mux{}
	second.Configure(driver.Options{"path": path})
	if err := second.Open(); err == nil {
		second.Close()
		t.Fatal("a second writer must be excluded while the lock is held")
	}
}

func TestCloseIdempotent(t *testing.T) {
	mux, _ := newTestMux(t)
	mux.Open()
	if err := mux.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := mux.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

func TestUpdate(t *testing.T) {
	mux, _ := newTestMux(t)
	if err := mux.Mount("1"); err != nil {
		t.Fatalf("Mount: %v", err)
	}

	if n, err := mux.Update("boot/uEnv.txt", 0, []byte("bootargs=quiet")); err != nil || n != 14 {
		t.Fatalf("Update = %d, %v", n, err)
	}
	if n, err := mux.Update("boot/uEnv.txt", 9, []byte("debug")); err != nil || n != 5 {
		t.Fatalf("Update at offset = %d, %v", n, err)
	}

	content, err := os.ReadFile(filepath.Join(mux.filesDir, "boot", "uEnv.txt"))
	if err != nil {
		t.Fatalf("reading destination: %v", err)
	}
	if string(content) != "bootargs=debug" {
		t.Fatalf("destination = %q, want %q", content, "bootargs=debug")
	}
}

func TestUpdateRejectsEscape(t *testing.T) {
	mux, _ := newTestMux(t)
	for _, destination := range []string{"../outside", "/etc/passwd", "a/../../b"} {
		if _, err := mux.Update(destination, 0, []byte("x")); err == nil {
			t.Fatalf("Update(%q) must be rejected", destination)
		}
	}
}

func TestPosition(t *testing.T) {
	mux, _ := newTestMux(t)
	if got, _ := mux.Status(); got != driver.SDOnHost {
		t.Fatalf("initial Status = %q, want %q", got, driver.SDOnHost)
	}
	mux.ToTarget()
	if got, _ := mux.Status(); got != driver.SDOnTarget {
		t.Fatalf("Status = %q after ToTarget", got)
	}
	mux.ToHost()
	if got, _ := mux.Status(); got != driver.SDOnHost {
		t.Fatalf("Status = %q after ToHost", got)
	}
}

func TestRegisteredVariant(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sd.img")
	mux, err := driver.NewSDMux("img", driver.Options{"path": path})
	if err != nil {
		t.Fatalf("NewSDMux(img): %v", err)
	}
	if _, ok := mux.(*Mux); !ok {
		t.Fatalf("NewSDMux(img) = %T", mux)
	}
}
