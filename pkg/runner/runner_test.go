package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddlama/forge/pkg/connector"
	connlocal "github.com/oddlama/forge/pkg/connector/local"
	"github.com/oddlama/forge/pkg/inventory"
	"github.com/oddlama/forge/pkg/report"
	"github.com/oddlama/forge/pkg/runctx"
)

func loadSite(t *testing.T, content string) *inventory.Inventory {
	t.Helper()
	path := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	inv, err := inventory.Load(path)
	require.NoError(t, err)
	return inv
}

func newRegistry(t *testing.T) *connector.Registry {
	t.Helper()
	reg := connector.NewRegistry()
	require.NoError(t, reg.Register("local", connlocal.New))
	return reg
}

func TestRunSucceedsAcrossHosts(t *testing.T) {
	inv := loadSite(t, `
hosts:
  - name: one
    transport: "local://"
  - name: two
    transport: "local://"
`)
	reg := newRegistry(t)
	sink := report.NewSink(report.NewMetrics(nil))

	var ran []string
	task := Task{
		ID: "noop",
		Run: func(ctx context.Context, rc *runctx.Context) error {
			ran = append(ran, rc.Host.Name)
			return nil
		},
	}

	results := Run(context.Background(), inv.Hosts(), inv, reg, sink, task, Options{Fanout: 2})
	require.Len(t, results, 2)
	for _, r := range results {
		assert.False(t, r.Aborted)
		assert.NoError(t, r.Err)
	}
	assert.ElementsMatch(t, []string{"one", "two"}, ran)
	assert.False(t, AnyFailed(results, sink))
}

func TestRunCapturesPerHostTaskError(t *testing.T) {
	inv := loadSite(t, `
hosts:
  - name: broken
    transport: "local://"
`)
	reg := newRegistry(t)
	sink := report.NewSink(report.NewMetrics(nil))

	task := Task{
		ID: "fails",
		Run: func(ctx context.Context, rc *runctx.Context) error {
			return errors.New("operator task failed")
		},
	}

	results := Run(context.Background(), inv.Hosts(), inv, reg, sink, task, Options{})
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.True(t, results[0].Aborted)
}

func TestRunAbortsStaleHostsWithoutDispatching(t *testing.T) {
	inv := loadSite(t, `
hosts:
  - name: one
    transport: "local://"
`)
	reg := newRegistry(t)
	sink := report.NewSink(report.NewMetrics(nil))

	called := false
	task := Task{
		ID: "noop",
		Run: func(ctx context.Context, rc *runctx.Context) error {
			called = true
			return nil
		},
	}

	results := Run(context.Background(), inv.Hosts(), inv, reg, sink, task, Options{
		Stale: func() bool { return true },
	})
	require.Len(t, results, 1)
	assert.True(t, results[0].Aborted)
	assert.False(t, called)
}
