package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

const testAccount = "So11111111111111111111111111111111111111112"

func runApp(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	app.Reader = strings.NewReader(stdin)
	app.ExitErrHandler = func(*cli.Context, error) {}

	err := app.RunContext(context.Background(), append([]string{"dlmm-tracker", "--demo"}, args...))
	return out.String(), err
}

func TestSnapshotDemo(t *testing.T) {
	out, err := runApp(t, "", "snapshot", "--account", testAccount)
	require.NoError(t, err)
	assert.Contains(t, out, "Total value $5200.00")
	assert.Contains(t, out, "[demo data]")
	assert.Contains(t, out, "Pool 98765432...")
}

func TestSnapshotAccountAsArgument(t *testing.T) {
	out, err := runApp(t, "", "snapshot", testAccount)
	require.NoError(t, err)
	assert.Contains(t, out, "P&L +$1500.00")
}

func TestSnapshotRequiresAccount(t *testing.T) {
	_, err := runApp(t, "", "snapshot")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account is required")
}

func TestSnapshotRejectsInvalidAccount(t *testing.T) {
	_, err := runApp(t, "", "snapshot", "--account", "not-a-key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid account")
}

func TestExportDemo(t *testing.T) {
	dir := t.TempDir()
	out, err := runApp(t, "", "export", "--account", testAccount, "--format", "json", "--out", dir, "--min-value", "2000")
	require.NoError(t, err)

	path := strings.TrimSpace(out)
	assert.Equal(t, dir, filepath.Dir(path))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"position_count": 1`)
}

func TestExportRejectsBadFlags(t *testing.T) {
	_, err := runApp(t, "", "export", "--account", testAccount, "--format", "xml")
	assert.Error(t, err)

	_, err = runApp(t, "", "export", "--account", testAccount, "--min-value", "lots")
	assert.Error(t, err)
}

func TestWatchQuitsOnCommand(t *testing.T) {
	// stdin is consumed right away, so quit may land before the first cycle.
	_, err := runApp(t, "r\nunknown\nq\n", "watch", "--account", testAccount)
	require.NoError(t, err)
}
