// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Benchctl is the operator CLI for a bench daemon. It speaks the
// control protocol over the daemon's unix socket.
package main

import (
	"fmt"
	"os"
	"os/user"

	"github.com/spf13/pflag"

	"github.com/bureau-foundation/bench/cmd/benchctl/cli"
	"github.com/bureau-foundation/bench/lib/config"
	"github.com/bureau-foundation/bench/lib/control"
)

// Connection settings shared by every subcommand, set by the
// --socket and --session flags.
var (
	socketPath string
	session    string
)

// addClientFlags registers the shared connection flags on a
// subcommand's flag set.
func addClientFlags(flagSet *pflag.FlagSet) {
	flagSet.StringVar(&socketPath, "socket", defaultSocket(), "bench daemon control socket")
	flagSet.StringVar(&session, "session", defaultSession(), "session token presented to the lease manager")
}

func newClient() *control.Client {
	return control.NewClient(socketPath, session)
}

func defaultSocket() string {
	if path := os.Getenv("BENCHD_SOCKET"); path != "" {
		return path
	}
	return config.DefaultSocketPath
}

// defaultSession identifies the operator as user@host so concurrent
// operators contend for the lease under distinct names.
func defaultSession() string {
	if token := os.Getenv("BENCH_SESSION"); token != "" {
		return token
	}
	username := "operator"
	if current, err := user.Current(); err == nil {
		username = current.Username
	}
	hostname, err := os.Hostname()
	if err != nil {
		return username
	}
	return username + "@" + hostname
}

func main() {
	root := &cli.Command{
		Name:    "benchctl",
		Summary: "Operate a test bench through its bench daemon",
		Subcommands: []*cli.Command{
			targetCommand(),
			powerCommand(),
			storageCommand(),
			usbCommand(),
			consoleCommand(),
		},
	}
	if err := root.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
