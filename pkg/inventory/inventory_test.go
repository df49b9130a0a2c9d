package inventory

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSite(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "site.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadMergesGroupAndHostVars(t *testing.T) {
	path := writeSite(t, `
groups:
  - name: web
    vars:
      role: web
      port: 80
hosts:
  - name: db1
    transport: "ssh://deploy@db1.example.com:2222"
    groups: [web]
    vars:
      port: 5432
`)

	inv, err := Load(path)
	require.NoError(t, err)

	host, ok := inv.Host("db1")
	require.True(t, ok)

	vars := inv.Vars(host)
	assert.Equal(t, "web", vars["role"])
	assert.EqualValues(t, 5432, vars["port"], "host vars must win over group vars")
}

func TestLoadMergesAcrossFiles(t *testing.T) {
	base := writeSite(t, `
hosts:
  - name: db1
    transport: "ssh://db1.example.com"
    vars:
      env: base
`)
	override := writeSite(t, `
hosts:
  - name: db1
    vars:
      env: override
`)

	inv, err := Load(base, override)
	require.NoError(t, err)

	host, ok := inv.Host("db1")
	require.True(t, ok)
	assert.Equal(t, "override", inv.Vars(host)["env"])
}

func TestLoadRejectsUnknownGroup(t *testing.T) {
	path := writeSite(t, `
hosts:
  - name: db1
    transport: "ssh://db1.example.com"
    groups: [nope]
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsDuplicateHost(t *testing.T) {
	path := writeSite(t, `
hosts:
  - name: db1
    transport: "ssh://a.example.com"
  - name: db1
    transport: "ssh://b.example.com"
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestSelectUnknownHostIsUsageError(t *testing.T) {
	path := writeSite(t, `
hosts:
  - name: db1
    transport: "ssh://db1.example.com"
`)
	inv, err := Load(path)
	require.NoError(t, err)

	_, err = inv.Select("db1,nope")
	require.Error(t, err)
}

func TestSelectEmptyCSVReturnsAllHosts(t *testing.T) {
	path := writeSite(t, `
hosts:
  - name: db1
    transport: "ssh://db1.example.com"
  - name: db2
    transport: "ssh://db2.example.com"
`)
	inv, err := Load(path)
	require.NoError(t, err)

	hosts, err := inv.Select("")
	require.NoError(t, err)
	require.Len(t, hosts, 2)
	assert.Equal(t, "db1", hosts[0].Name)
	assert.Equal(t, "db2", hosts[1].Name)
}

func TestGroupMembersPreservesDeclarationOrder(t *testing.T) {
	path := writeSite(t, `
groups:
  - name: web
hosts:
  - name: b
    transport: "ssh://b.example.com"
    groups: [web]
  - name: a
    transport: "ssh://a.example.com"
    groups: [web]
`)
	inv, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, inv.GroupMembers("web"))
}

func TestConnectorInfoParsesSSHTransport(t *testing.T) {
	h := &Host{Name: "db1", Transport: "ssh://deploy@db1.example.com:2222"}
	scheme, _, info, err := h.ConnectorInfo()
	require.NoError(t, err)
	assert.Equal(t, "ssh", scheme)
	assert.Equal(t, "db1.example.com", info.SSHHost)
	assert.Equal(t, 2222, info.SSHPort)
	assert.Equal(t, "deploy", info.SSHUser)
}

func TestConnectorInfoRejectsMissingScheme(t *testing.T) {
	h := &Host{Name: "db1", Transport: "db1.example.com"}
	_, _, _, err := h.ConnectorInfo()
	require.Error(t, err)
}
