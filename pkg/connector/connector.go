// Package connector defines the transport abstraction between the
// controller and a single remote host, and a scheme-keyed registry of
// connector implementations (e.g. "ssh", "local").
package connector

import (
	"context"
	"io"
)

// RunOptions configures a single remote command execution. Fields left nil
// take the dispatcher's own defaults (the process's ambient user/group,
// umask 0o077, its own working directory).
type RunOptions struct {
	Stdin         *[]byte
	CaptureOutput bool
	User          *string
	Group         *string
	Umask         *string
	Cwd           *string
}

// CompletedCommand is the result of Run.
type CompletedCommand struct {
	Stdout     *[]byte
	Stderr     *[]byte
	ReturnCode int32
}

// PreexecError is returned by Run when the remote failed to set up the
// child process itself (as opposed to the command's own exit status, or a
// validation error in the request).
type PreexecError struct{}

func (*PreexecError) Error() string { return "connector: remote pre-exec step failed" }

// Stat mirrors the wire protocol's StatResult (§4.A), using the type
// vocabulary "dir", "file", "link", "fifo", "sock", "chr", "blk", "other".
type Stat struct {
	Type      string
	Mode      string // octal string, e.g. "0644"
	Owner     string
	Group     string
	Size      uint64
	MtimeNs   uint64
	CtimeNs   uint64
	Sha512Sum []byte
}

// Connector is the interface every transport (ssh, local, ...) implements.
// A Connector is bound to exactly one host and is not safe for concurrent
// use — the host worker that owns it serializes every call.
type Connector interface {
	// Open establishes the connection, including bootstrapping and
	// launching the remote dispatcher if the transport requires it.
	Open(ctx context.Context) error
	// Close tears down the connection. Best-effort: it sends Exit to the
	// dispatcher if possible, but always releases local resources even
	// if that fails.
	Close() error

	Run(ctx context.Context, command []string, opts RunOptions) (*CompletedCommand, error)
	ResolveUser(ctx context.Context, user string) (string, error)
	ResolveGroup(ctx context.Context, group string) (string, error)
	Stat(ctx context.Context, path string, followLinks, sha512Sum bool) (*Stat, error)
	Upload(ctx context.Context, file string, content []byte, mode, owner, group *string) error
	Download(ctx context.Context, file string) ([]byte, error)
}

// Factory builds a Connector for a given host url (everything after the
// scheme, e.g. "user@host:port" for "ssh://user@host:port").
type Factory func(url string, host HostInfo) (Connector, error)

// HostInfo is the subset of inventory host data a connector needs to open
// a connection — kept separate from pkg/inventory.Host to avoid an import
// cycle (inventory imports connector to build a HostInfo, not the other
// way round).
type HostInfo struct {
	Name    string
	SSHHost string
	SSHPort int
	SSHUser string
	SSHOpts []string
	// Debug requests that the connector launch the remote dispatcher with
	// its own --debug argv flag, set from the controller's --debug flag
	// rather than anything in the inventory.
	Debug bool
}

// DispatcherBinary supplies the embedded dispatcher binary bytes for a
// given (GOOS, GOARCH) pair, or ok=false if none is embedded for it.
type DispatcherBinary func(goos, goarch string) (data []byte, ok bool)

var _ io.Closer = Connector(nil)
