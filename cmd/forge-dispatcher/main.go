// Command forge-dispatcher is the remote half of the protocol: a
// self-contained, statically linked binary that the controller uploads and
// launches over an SSH session. It never runs unattended — it is always
// spawned fresh per connection, reads requests from stdin, and writes
// responses to stdout until it receives Exit or hits a fatal I/O error.
package main

import (
	"log/slog"
	"os"
	"syscall"

	"github.com/oddlama/forge/pkg/dispatcher"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Umask 0o077 by default: files this process creates on the remote
	// host should not be group/world readable unless an operation
	// explicitly asks for it via Upload.Mode.
	syscall.Umask(0o077)

	debug := len(os.Args) > 1 && os.Args[1] == "--debug"

	level := slog.LevelWarn
	if debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	return dispatcher.Serve(os.Stdin, os.Stdout, log)
}
