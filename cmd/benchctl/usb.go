// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/bureau-foundation/bench/cmd/benchctl/cli"
)

// usbPortAction wraps a per-port operation: the single argument is
// either a 1-based port index or a class name.
func usbPortAction(
	byIndex func(ctx context.Context, index int) (string, error),
	byClass func(ctx context.Context, class string) (bool, error),
) func(args []string) error {
	return func(args []string) error {
		if len(args) != 1 {
			return fmt.Errorf("exactly one port index or class argument required")
		}
		ctx := context.Background()
		if index, err := strconv.Atoi(args[0]); err == nil {
			state, err := byIndex(ctx, index)
			if err != nil {
				return err
			}
			fmt.Println(state)
			return nil
		}
		if byClass == nil {
			return fmt.Errorf("invalid port index %q", args[0])
		}
		ok, err := byClass(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no port with class %q", args[0])
		}
		return nil
	}
}

func usbCommand() *cli.Command {
	return &cli.Command{
		Name:    "usb",
		Summary: "Control USB power switches",
		Subcommands: []*cli.Command{
			{
				Name:    "count",
				Summary: "Show the number of configured ports",
				Flags:   clientFlags("count"),
				Run: func(args []string) error {
					count, err := newClient().USBCount(context.Background())
					if err != nil {
						return err
					}
					fmt.Println(count)
					return nil
				},
			},
			{
				Name:    "on",
				Summary: "Power a port on, by index or class",
				Usage:   "benchctl usb on <port|class> [flags]",
				Flags:   clientFlags("on"),
				Run: usbPortAction(
					func(ctx context.Context, index int) (string, error) {
						return newClient().USBOn(ctx, index)
					},
					func(ctx context.Context, class string) (bool, error) {
						return newClient().USBOnByClass(ctx, class)
					},
				),
			},
			{
				Name:    "off",
				Summary: "Power a port off, by index or class",
				Usage:   "benchctl usb off <port|class> [flags]",
				Flags:   clientFlags("off"),
				Run: usbPortAction(
					func(ctx context.Context, index int) (string, error) {
						return newClient().USBOff(ctx, index)
					},
					func(ctx context.Context, class string) (bool, error) {
						return newClient().USBOffByClass(ctx, class)
					},
				),
			},
			{
				Name:    "toggle",
				Summary: "Flip a port's power by index",
				Usage:   "benchctl usb toggle <port> [flags]",
				Flags:   clientFlags("toggle"),
				Run: usbPortAction(
					func(ctx context.Context, index int) (string, error) {
						return newClient().USBToggle(ctx, index)
					},
					nil,
				),
			},
			{
				Name:    "status",
				Summary: "Show a port's power state by index",
				Usage:   "benchctl usb status <port> [flags]",
				Flags:   clientFlags("status"),
				Run: usbPortAction(
					func(ctx context.Context, index int) (string, error) {
						return newClient().USBStatus(ctx, index)
					},
					nil,
				),
			},
		},
	}
}
