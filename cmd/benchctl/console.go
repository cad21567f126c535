// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/bureau-foundation/bench/cmd/benchctl/cli"
)

func consoleCommand() *cli.Command {
	return &cli.Command{
		Name:    "console",
		Summary: "Read and drive the target's console",
		Subcommands: []*cli.Command{
			{
				Name:    "head",
				Summary: "Pop and print the oldest captured line",
				Flags:   clientFlags("head"),
				Run: func(args []string) error {
					line, err := newClient().ConsoleHead(context.Background())
					if err != nil {
						return err
					}
					fmt.Println(line)
					return nil
				},
			},
			{
				Name:    "tail",
				Summary: "Print the newest captured line",
				Flags:   clientFlags("tail"),
				Run: func(args []string) error {
					line, err := newClient().ConsoleTail(context.Background())
					if err != nil {
						return err
					}
					fmt.Println(line)
					return nil
				},
			},
			{
				Name:    "lines",
				Summary: "Show the number of buffered lines",
				Flags:   clientFlags("lines"),
				Run: func(args []string) error {
					count, err := newClient().ConsoleLines(context.Background())
					if err != nil {
						return err
					}
					fmt.Println(count)
					return nil
				},
			},
			{
				Name:    "dump",
				Summary: "Pop and print every buffered line",
				Flags:   clientFlags("dump"),
				Run: func(args []string) error {
					ctx := context.Background()
					client := newClient()
					count, err := client.ConsoleLines(ctx)
					if err != nil {
						return err
					}
					for i := 0; i < count; i++ {
						line, err := client.ConsoleHead(ctx)
						if err != nil {
							return err
						}
						fmt.Println(line)
					}
					return nil
				},
			},
			{
				Name:    "clear",
				Summary: "Discard the captured log",
				Flags:   clientFlags("clear"),
				Run: func(args []string) error {
					dropped, err := newClient().ConsoleClear(context.Background())
					if err != nil {
						return err
					}
					if dropped < 0 {
						return fmt.Errorf("clear denied (locked, or no console)")
					}
					fmt.Printf("dropped %d lines\n", dropped)
					return nil
				},
			},
			{
				Name:    "send",
				Summary: "Send a line to the target's console input",
				Usage:   "benchctl console send <text...> [flags]",
				Flags:   clientFlags("send"),
				Run: func(args []string) error {
					if len(args) == 0 {
						return fmt.Errorf("text argument required")
					}
					data := []byte(strings.Join(args, " ") + "\n")
					n, err := newClient().ConsoleSend(context.Background(), data)
					if err != nil {
						return err
					}
					if n < 0 {
						return fmt.Errorf("send denied (locked, or no console)")
					}
					return nil
				},
			},
			{
				Name:    "print",
				Summary: "Inject an annotation line into the captured log",
				Usage:   "benchctl console print <text...> [flags]",
				Flags:   clientFlags("print"),
				Run: func(args []string) error {
					if len(args) == 0 {
						return fmt.Errorf("text argument required")
					}
					ok, err := newClient().ConsolePrint(context.Background(), strings.Join(args, " "))
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("print denied (locked, or no console)")
					}
					return nil
				},
			},
			{
				Name:    "timestamps",
				Summary: "Toggle elapsed-time prefixes on captured lines",
				Flags:   clientFlags("timestamps"),
				Run: func(args []string) error {
					enabled, err := newClient().ConsoleToggleTimestamps(context.Background())
					if err != nil {
						return err
					}
					if enabled {
						fmt.Println("timestamps on")
					} else {
						fmt.Println("timestamps off")
					}
					return nil
				},
			},
		},
	}
}
