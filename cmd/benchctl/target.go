// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/bench/cmd/benchctl/cli"
)

func clientFlags(name string) func() *pflag.FlagSet {
	return func() *pflag.FlagSet {
		flagSet := pflag.NewFlagSet(name, pflag.ContinueOnError)
		addClientFlags(flagSet)
		return flagSet
	}
}

func targetCommand() *cli.Command {
	return &cli.Command{
		Name:    "target",
		Summary: "Acquire, release, and inspect the target lease",
		Subcommands: []*cli.Command{
			{
				Name:    "lock",
				Summary: "Acquire or refresh the target lease",
				Flags:   clientFlags("lock"),
				Run: func(args []string) error {
					ok, err := newClient().Lock(context.Background())
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("target is locked by another session")
					}
					fmt.Println("locked")
					return nil
				},
			},
			{
				Name:    "unlock",
				Summary: "Release the target lease",
				Flags:   clientFlags("unlock"),
				Run: func(args []string) error {
					ok, err := newClient().Unlock(context.Background())
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("lease is not held by this session")
					}
					fmt.Println("unlocked")
					return nil
				},
			},
			{
				Name:    "status",
				Summary: "Show the lease, power, and media state",
				Flags:   clientFlags("status"),
				Run: func(args []string) error {
					ctx := context.Background()
					client := newClient()
					owner, err := client.Owner(ctx)
					if err != nil {
						return err
					}
					if owner == "" {
						owner = "free"
					}
					power, err := client.PowerStatus(ctx)
					if err != nil {
						return err
					}
					media, err := client.StorageStatus(ctx)
					if err != nil {
						return err
					}
					fmt.Printf("lease   %s\npower   %s\nstorage %s\n", owner, power, media)
					return nil
				},
			},
			{
				Name:    "owner",
				Summary: "Show the current lease owner",
				Flags:   clientFlags("owner"),
				Run: func(args []string) error {
					owner, err := newClient().Owner(context.Background())
					if err != nil {
						return err
					}
					if owner == "" {
						fmt.Println("free")
						return nil
					}
					fmt.Println(owner)
					return nil
				},
			},
		},
	}
}
