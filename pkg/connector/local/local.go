// Package local implements a Connector that drives an in-process
// dispatcher over an io.Pipe instead of a real SSH session. It is the
// "nettest-free in-memory pipe" referenced by SPEC_FULL.md's test-tooling
// section: unit tests exercise the real wire codec, registry, and
// dispatcher handlers without forking a subprocess.
package local

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/oddlama/forge/pkg/codec"
	"github.com/oddlama/forge/pkg/connector"
	"github.com/oddlama/forge/pkg/dispatcher"
	"github.com/oddlama/forge/pkg/wire"
)

// Connector runs pkg/dispatcher.Serve in a goroutine, wired to the
// connector via a pair of io.Pipes, giving the controller side a real
// connector.Connector backed by the real dispatcher logic.
type Connector struct {
	debug bool

	writer *codec.Writer
	reader *codec.Reader

	// close tears down both pipe halves; set by Open.
	close func() error
	done  chan int
}

// New returns an unopened local connector. url is accepted to satisfy
// connector.Factory's signature but unused: the local connector always
// drives the dispatcher in-process. host.Debug is honored, mirroring the
// SSH connector's --debug argv forwarding.
func New(url string, host connector.HostInfo) (connector.Connector, error) {
	return &Connector{debug: host.Debug}, nil
}

func (c *Connector) Open(ctx context.Context) error {
	ctrlToDispR, ctrlToDispW := io.Pipe()
	dispToCtrlR, dispToCtrlW := io.Pipe()

	c.writer = codec.NewWriter(ctrlToDispW)
	c.reader = codec.NewReader(dispToCtrlR)
	c.done = make(chan int, 1)

	logOpts := &slog.HandlerOptions{}
	logOut := io.Discard
	if c.debug {
		logOpts.Level = slog.LevelDebug
		logOut = os.Stderr
	}
	log := slog.New(slog.NewTextHandler(logOut, logOpts))
	go func() {
		code := dispatcher.Serve(ctrlToDispR, dispToCtrlW, log)
		dispToCtrlW.Close()
		c.done <- code
	}()

	c.close = func() error {
		ctrlToDispW.Close()
		<-c.done
		return nil
	}

	return roundTrip(c, &wire.CheckAlive{}, func(r wire.Response) error {
		if _, ok := r.(*wire.Ack); !ok {
			return fmt.Errorf("local connector: handshake: expected Ack, got %T", r)
		}
		return nil
	})
}

func (c *Connector) Close() error {
	if c.close == nil {
		return nil
	}
	// Exit has no response; ignore a write failure since the dispatcher
	// goroutine may have already exited on its own.
	_ = wire.WritePacket(c.writer, &wire.Exit{})
	return c.close()
}

func roundTrip(c *Connector, req wire.Request, handle func(wire.Response) error) error {
	if err := wire.WritePacket(c.writer, req); err != nil {
		return fmt.Errorf("local connector: write request: %w", err)
	}
	resp, err := wire.ReadResponse(c.reader)
	if err != nil {
		return fmt.Errorf("local connector: read response: %w", err)
	}
	return handle(resp)
}

func (c *Connector) Run(ctx context.Context, command []string, opts connector.RunOptions) (*connector.CompletedCommand, error) {
	var result *connector.CompletedCommand
	err := roundTrip(c, &wire.ProcessRun{
		Command:       command,
		Stdin:         opts.Stdin,
		CaptureOutput: opts.CaptureOutput,
		User:          opts.User,
		Group:         opts.Group,
		Umask:         opts.Umask,
		Cwd:           opts.Cwd,
	}, func(r wire.Response) error {
		switch v := r.(type) {
		case *wire.ProcessCompleted:
			result = &connector.CompletedCommand{Stdout: v.Stdout, Stderr: v.Stderr, ReturnCode: v.ReturnCode}
			return nil
		case *wire.ProcessPreexecError:
			return &connector.PreexecError{}
		case *wire.InvalidField:
			return fmt.Errorf("invalid field %q: %s", v.Field, v.ErrorMessage)
		default:
			return fmt.Errorf("local connector: unexpected response %T", r)
		}
	})
	return result, err
}

func (c *Connector) ResolveUser(ctx context.Context, user string) (string, error) {
	return resolveName(c, &wire.ResolveUser{User: user})
}

func (c *Connector) ResolveGroup(ctx context.Context, group string) (string, error) {
	return resolveName(c, &wire.ResolveGroup{Group: group})
}

func resolveName(c *Connector, req wire.Request) (string, error) {
	var name string
	err := roundTrip(c, req, func(r wire.Response) error {
		switch v := r.(type) {
		case *wire.ResolveResult:
			name = v.Value
			return nil
		case *wire.InvalidField:
			return fmt.Errorf("invalid field %q: %s", v.Field, v.ErrorMessage)
		default:
			return fmt.Errorf("local connector: unexpected response %T", r)
		}
	})
	return name, err
}

func (c *Connector) Stat(ctx context.Context, path string, followLinks, sha512Sum bool) (*connector.Stat, error) {
	var result *connector.Stat
	err := roundTrip(c, &wire.Stat{Path: path, FollowLinks: followLinks, Sha512Sum: sha512Sum}, func(r wire.Response) error {
		switch v := r.(type) {
		case *wire.StatResult:
			result = &connector.Stat{
				Type:    v.Type,
				Mode:    fmt.Sprintf("%04o", v.Mode),
				Owner:   v.Owner,
				Group:   v.Group,
				Size:    v.Size,
				MtimeNs: v.MtimeNs,
				CtimeNs: v.CtimeNs,
			}
			if v.Sha512Sum != nil {
				result.Sha512Sum = *v.Sha512Sum
			}
			return nil
		case *wire.InvalidField:
			return fmt.Errorf("invalid field %q: %s", v.Field, v.ErrorMessage)
		default:
			return fmt.Errorf("local connector: unexpected response %T", r)
		}
	})
	return result, err
}

func (c *Connector) Upload(ctx context.Context, file string, content []byte, mode, owner, group *string) error {
	return roundTrip(c, &wire.Upload{File: file, Content: content, Mode: mode, Owner: owner, Group: group}, func(r wire.Response) error {
		switch v := r.(type) {
		case *wire.Ok:
			return nil
		case *wire.InvalidField:
			return fmt.Errorf("invalid field %q: %s", v.Field, v.ErrorMessage)
		default:
			return fmt.Errorf("local connector: unexpected response %T", r)
		}
	})
}

func (c *Connector) Download(ctx context.Context, file string) ([]byte, error) {
	var content []byte
	err := roundTrip(c, &wire.Download{File: file}, func(r wire.Response) error {
		switch v := r.(type) {
		case *wire.DownloadResult:
			content = v.Content
			return nil
		case *wire.InvalidField:
			return fmt.Errorf("invalid field %q: %s", v.Field, v.ErrorMessage)
		default:
			return fmt.Errorf("local connector: unexpected response %T", r)
		}
	})
	return content, err
}

var _ connector.Connector = (*Connector)(nil)
var _ connector.Factory = New
