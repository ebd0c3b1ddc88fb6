package enqueue_test

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"fjacquet/budget-csv/cmd/enqueue"
	"fjacquet/budget-csv/cmd/root"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var register sync.Once

func run(t *testing.T, args ...string) error {
	t.Helper()
	register.Do(func() { root.Cmd.AddCommand(enqueue.Cmd) })

	var out bytes.Buffer
	root.Cmd.SetOut(&out)
	root.Cmd.SetErr(&out)
	root.Cmd.SetArgs(args)
	err := root.Cmd.Execute()
	root.Shutdown()
	return err
}

func TestEnqueue_Validation(t *testing.T) {
	t.Setenv("AMQP_URL", "")
	dir := t.TempDir()
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("log:\n  level: error\nstore:\n  backend: memory\n"), 0600))
	input := filepath.Join(dir, "march.csv")
	require.NoError(t, os.WriteFile(input, []byte("Date,Description,Debit,Credit\n"), 0600))

	err := run(t, "enqueue", "-p", "../alice", "-i", input, "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "profile")

	err = run(t, "enqueue", "-p", "alice", "-i", input, "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "worker.amqp.url")
}
