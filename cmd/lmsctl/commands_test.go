package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootRegistersCommands(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0, len(root.Commands()))
	for _, cmd := range root.Commands() {
		names = append(names, cmd.Name())
	}
	assert.ElementsMatch(t, []string{"migrate", "seed-admin", "shadow-compare"}, names)
}

func TestMigrateRejectsUnknownCommand(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"migrate", "sideways"})

	assert.Error(t, root.Execute())
}

func TestSeedAdminRequiresCredentials(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"seed-admin", "--email", "root@example.com"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password")
}

func TestShadowCompareFailsOnCriticalDiff(t *testing.T) {
	legacy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
	}))
	defer legacy.Close()
	next := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":true,"data":[{"id":"b1"}]}`))
	}))
	defer next.Close()

	targets := filepath.Join(t.TempDir(), "targets.json")
	require.NoError(t, os.WriteFile(targets, []byte(`{"targets":[{"method":"GET","path":"/api/admin/batches/all","critical":true}]}`), 0o600))

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"shadow-compare", "--legacy", legacy.URL, "--go", next.URL, "--targets", targets})

	err := root.Execute()
	assert.ErrorIs(t, err, errBreakingDiffs)
	assert.Contains(t, out.String(), "[DIFF] GET /api/admin/batches/all")
}
