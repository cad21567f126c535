// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bureau-foundation/bench/cmd/benchctl/cli"
	"github.com/bureau-foundation/bench/lib/control"
	"github.com/bureau-foundation/bench/lib/stream"
)

// framingForPath maps an image file extension to the wire framing
// suffix of the storage-write actions.
func framingForPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gz", ".gzip":
		return "gz"
	case ".bz2":
		return "bz2"
	case ".zst", ".zstd":
		return "zst"
	case ".lz4":
		return "lz4"
	default:
		return "raw"
	}
}

func storageCommand() *cli.Command {
	return &cli.Command{
		Name:    "storage",
		Summary: "Control the shared storage media",
		Subcommands: []*cli.Command{
			{
				Name:    "status",
				Summary: "Show which side the media is attached to",
				Flags:   clientFlags("status"),
				Run: func(args []string) error {
					state, err := newClient().StorageStatus(context.Background())
					if err != nil {
						return err
					}
					fmt.Println(state)
					return nil
				},
			},
			{
				Name:    "host",
				Summary: "Attach the media to the host",
				Flags:   clientFlags("host"),
				Run: func(args []string) error {
					ok, err := newClient().StorageToHost(context.Background())
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("swap denied (locked, target powered, or write in progress)")
					}
					return nil
				},
			},
			{
				Name:    "target",
				Summary: "Attach the media to the target",
				Flags:   clientFlags("target"),
				Run: func(args []string) error {
					ok, err := newClient().StorageToTarget(context.Background())
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("swap denied (locked, target powered, or write in progress)")
					}
					return nil
				},
			},
			{
				Name:    "toggle",
				Summary: "Swap the media to the other side",
				Flags:   clientFlags("toggle"),
				Run: func(args []string) error {
					state, err := newClient().StorageToggle(context.Background())
					if err != nil {
						return err
					}
					fmt.Println(state)
					return nil
				},
			},
			{
				Name:    "mount",
				Summary: "Mount a partition of the media on the host",
				Usage:   "benchctl storage mount [partition] [flags]",
				Flags:   clientFlags("mount"),
				Run: func(args []string) error {
					partition := ""
					if len(args) > 0 {
						partition = args[0]
					}
					ok, err := newClient().StorageMount(context.Background(), partition)
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("mount failed")
					}
					return nil
				},
			},
			{
				Name:    "open",
				Summary: "Start a write session on the media",
				Flags:   clientFlags("open"),
				Run: func(args []string) error {
					ok, err := newClient().StorageOpen(context.Background())
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("open failed (is a mux configured?)")
					}
					return nil
				},
			},
			{
				Name:    "close",
				Summary: "End the write session",
				Flags:   clientFlags("close"),
				Run: func(args []string) error {
					ok, err := newClient().StorageClose(context.Background())
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("close failed")
					}
					return nil
				},
			},
			{
				Name:    "bytes",
				Summary: "Show the bytes written by the current flash",
				Flags:   clientFlags("bytes"),
				Run: func(args []string) error {
					written, err := newClient().StorageBytesWritten(context.Background())
					if err != nil {
						return err
					}
					fmt.Println(written)
					return nil
				},
			},
			storageWriteCommand(),
			storageUpdateCommand(),
			{
				Name:    "checksum",
				Summary: "Show the digest of the bytes written by the last flash",
				Flags:   clientFlags("checksum"),
				Run: func(args []string) error {
					sum, err := newClient().StorageChecksum(context.Background())
					if err != nil {
						return err
					}
					fmt.Println(sum)
					return nil
				},
			},
		},
	}
}

func storageWriteCommand() *cli.Command {
	return &cli.Command{
		Name:    "write",
		Summary: "Flash an image file to the media",
		Usage:   "benchctl storage write <image> [flags]",
		Flags:   clientFlags("write"),
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("exactly one image file argument required")
			}
			return writeImage(context.Background(), args[0])
		},
	}
}

// writeImage streams an image to the media, picking the framing from
// the file extension. The daemon decompresses server-side, so
// compressed images travel compressed.
func writeImage(ctx context.Context, path string) error {
	image, err := os.Open(path)
	if err != nil {
		return err
	}
	defer image.Close()

	client := newClient()
	framing := framingForPath(path)

	ok, err := client.StorageOpen(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("opening a write session failed (is a mux configured?)")
	}

	chunk := make([]byte, stream.BlockSize)
	sent := 0
	for {
		n, readErr := image.Read(chunk)
		if n > 0 {
			sent += n
			if err := sendChunk(ctx, client, framing, chunk[:n]); err != nil {
				client.StorageClose(ctx)
				return err
			}
		}
		if readErr != nil {
			break
		}
	}

	if ok, err := client.StorageClose(ctx); err != nil || !ok {
		return fmt.Errorf("closing write session: %v", err)
	}

	written, err := client.StorageBytesWritten(ctx)
	if err != nil {
		return err
	}
	sum, err := client.StorageChecksum(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("sent %d bytes, wrote %d bytes to media\nchecksum %s\n", sent, written, sum)
	return nil
}

// sendChunk delivers one chunk, resuming with empty chunks while the
// daemon reports buffered work.
func sendChunk(ctx context.Context, client *control.Client, framing string, chunk []byte) error {
	for {
		status, err := client.StorageWrite(ctx, framing, chunk)
		if err != nil {
			return err
		}
		switch {
		case status > 0:
			return nil
		case status == 0:
			// The daemon yielded mid-chunk: report progress and keep
			// draining with empty writes.
			if written, err := client.StorageBytesWritten(ctx); err == nil {
				fmt.Fprintf(os.Stderr, "\r%d bytes written", written)
			}
			chunk = nil
		default:
			return fmt.Errorf("daemon reported a write failure (status %d)", status)
		}
	}
}

func storageUpdateCommand() *cli.Command {
	return &cli.Command{
		Name:    "update",
		Summary: "Write a local file into the mounted media",
		Usage:   "benchctl storage update <destination> <file> [offset] [flags]",
		Flags:   clientFlags("update"),
		Run: func(args []string) error {
			if len(args) < 2 || len(args) > 3 {
				return fmt.Errorf("destination and file arguments required")
			}
			destination, path := args[0], args[1]
			var offset int64
			if len(args) == 3 {
				parsed, err := strconv.ParseInt(args[2], 10, 64)
				if err != nil {
					return fmt.Errorf("invalid offset %q: %w", args[2], err)
				}
				offset = parsed
			}
			data, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			n, err := newClient().StorageUpdate(context.Background(), destination, offset, data)
			if err != nil {
				return err
			}
			if n < 0 {
				return fmt.Errorf("update failed")
			}
			fmt.Printf("wrote %d bytes to %s\n", n, destination)
			return nil
		},
	}
}
