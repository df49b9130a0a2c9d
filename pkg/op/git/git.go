// Package git implements the git.Checkout idempotent operation (spec.md
// §4.G, SPEC_FULL.md's supplemented-features section): clone dst from url
// if it doesn't exist yet, or, if it does, fetch and hard-reset it in place
// to the fetched head (local changes and local commits are discarded; this
// is not a fast-forward merge), grounded on example/tasks/zsh.py's
// `git.checkout(url, dst, depth=1)` calls for zsh plugin repositories.
package git

import (
	"context"
	"fmt"
	"strconv"

	"github.com/oddlama/forge/pkg/connector"
	"github.com/oddlama/forge/pkg/runctx"
	"github.com/oddlama/forge/pkg/transaction"
)

// Checkout ensures a git repository is present at dst, cloned from url. If
// depth is non-nil, clones with --depth; updating an existing repository
// fetches without it. If rev is non-nil, checks
// out that revision after cloning/fetching; otherwise tracks the remote's
// default branch.
func Checkout(ctx context.Context, c *runctx.Context, url, dst string, depth *int, rev *string) error {
	return c.Transaction("git.checkout", dst, func(t *transaction.Transaction) error {
		before, statErr := c.Conn.Stat(ctx, dst+"/.git", true, false)
		exists := statErr == nil && before.Type == "dir"

		t.InitialState(map[string]any{"exists": exists})

		if exists {
			remoteHead, err := currentHead(ctx, c.Conn, dst)
			if err != nil {
				return t.Fail(fmt.Errorf("reading HEAD of %s: %w", dst, err))
			}
			wantRef := "HEAD"
			if rev != nil {
				wantRef = *rev
			}
			upstreamHead, err := lsRemoteHead(ctx, c.Conn, url, wantRef)
			if err != nil {
				return t.Fail(fmt.Errorf("querying remote %s: %w", url, err))
			}

			t.FinalState(map[string]any{"exists": true, "head": upstreamHead})
			if remoteHead == upstreamHead {
				return t.Unchanged()
			}

			if t.DryRun() {
				return t.Changed()
			}
			if err := fetchAndResetHard(ctx, c.Conn, dst, rev); err != nil {
				return t.Fail(fmt.Errorf("updating %s: %w", dst, err))
			}
			return t.Changed()
		}

		t.FinalState(map[string]any{"exists": true})
		if t.DryRun() {
			return t.Changed()
		}
		if err := cloneRepo(ctx, c.Conn, url, dst, depth, rev); err != nil {
			return t.Fail(fmt.Errorf("cloning %s into %s: %w", url, dst, err))
		}
		return t.Changed()
	})
}

func runChecked(ctx context.Context, conn connector.Connector, command []string) (string, error) {
	result, err := conn.Run(ctx, command, connector.RunOptions{CaptureOutput: true})
	if err != nil {
		return "", err
	}
	if result.ReturnCode != 0 {
		msg := ""
		if result.Stderr != nil {
			msg = string(*result.Stderr)
		}
		return "", fmt.Errorf("command %v exited %d: %s", command, result.ReturnCode, msg)
	}
	stdout := ""
	if result.Stdout != nil {
		stdout = string(*result.Stdout)
	}
	return stdout, nil
}

func currentHead(ctx context.Context, conn connector.Connector, dst string) (string, error) {
	out, err := runChecked(ctx, conn, []string{"git", "-C", dst, "rev-parse", "HEAD"})
	return trimNewline(out), err
}

func lsRemoteHead(ctx context.Context, conn connector.Connector, url, ref string) (string, error) {
	out, err := runChecked(ctx, conn, []string{"git", "ls-remote", url, ref})
	if err != nil {
		return "", err
	}
	// `git ls-remote` output is "<sha>\t<ref>"; only the sha is compared.
	for i := 0; i < len(out); i++ {
		if out[i] == '\t' || out[i] == '\n' {
			return out[:i], nil
		}
	}
	return trimNewline(out), nil
}

func cloneRepo(ctx context.Context, conn connector.Connector, url, dst string, depth *int, rev *string) error {
	cmd := []string{"git", "clone"}
	if depth != nil {
		cmd = append(cmd, "--depth", strconv.Itoa(*depth))
	}
	cmd = append(cmd, url, dst)
	if _, err := runChecked(ctx, conn, cmd); err != nil {
		return err
	}
	if rev != nil {
		if _, err := runChecked(ctx, conn, []string{"git", "-C", dst, "checkout", *rev}); err != nil {
			return err
		}
	}
	return nil
}

func fetchAndResetHard(ctx context.Context, conn connector.Connector, dst string, rev *string) error {
	if _, err := runChecked(ctx, conn, []string{"git", "-C", dst, "fetch", "--all"}); err != nil {
		return err
	}
	target := "FETCH_HEAD"
	if rev != nil {
		target = *rev
	}
	_, err := runChecked(ctx, conn, []string{"git", "-C", dst, "reset", "--hard", target})
	return err
}

func trimNewline(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
