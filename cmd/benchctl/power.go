// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/bureau-foundation/bench/cmd/benchctl/cli"
)

func powerCommand() *cli.Command {
	return &cli.Command{
		Name:    "power",
		Summary: "Control the target's power line",
		Subcommands: []*cli.Command{
			{
				Name:    "on",
				Summary: "Power the target on",
				Flags:   clientFlags("on"),
				Run: func(args []string) error {
					ok, err := newClient().PowerOn(context.Background())
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("power on denied (locked, or no power driver)")
					}
					return nil
				},
			},
			{
				Name:    "off",
				Summary: "Power the target off",
				Flags:   clientFlags("off"),
				Run: func(args []string) error {
					ok, err := newClient().PowerOff(context.Background())
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("power off denied (locked, or no power driver)")
					}
					return nil
				},
			},
			{
				Name:    "toggle",
				Summary: "Flip the target's power and show the new state",
				Flags:   clientFlags("toggle"),
				Run: func(args []string) error {
					state, err := newClient().PowerToggle(context.Background())
					if err != nil {
						return err
					}
					fmt.Println(state)
					return nil
				},
			},
			{
				Name:    "status",
				Summary: "Show the target's power state",
				Flags:   clientFlags("status"),
				Run: func(args []string) error {
					state, err := newClient().PowerStatus(context.Background())
					if err != nil {
						return err
					}
					fmt.Println(state)
					return nil
				},
			},
		},
	}
}
