package process_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"fjacquet/budget-csv/cmd/categories"
	"fjacquet/budget-csv/cmd/process"
	"fjacquet/budget-csv/cmd/profiles"
	"fjacquet/budget-csv/cmd/root"
	"fjacquet/budget-csv/cmd/rules"
	"fjacquet/budget-csv/cmd/summary"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var register sync.Once

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	register.Do(func() {
		root.Cmd.AddCommand(process.Cmd, profiles.Cmd, categories.Cmd, rules.Cmd, summary.Cmd)
	})

	var out bytes.Buffer
	root.Cmd.SetOut(&out)
	root.Cmd.SetErr(&out)
	root.Cmd.SetArgs(args)
	err := root.Cmd.Execute()
	root.Shutdown()
	return out.String(), err
}

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	content := `
log:
  level: error
store:
  backend: file
  data_dir: ` + filepath.Join(dir, "data") + `
delivery:
  kind: dir
  output_dir: ` + filepath.Join(dir, "out") + `
ai:
  provider: none
`
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const export = `Date,Description,Debit,Credit
03/14/2024,STARBUCKS 123,5.50,
03/15/2024,SHELL OIL 5743,40.00,
nope,SHELL OIL,1.00,
`

func TestCLI_ProcessWorkflow(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)
	input := filepath.Join(dir, "march.csv")
	require.NoError(t, os.WriteFile(input, []byte(export), 0600))
	categorized := filepath.Join(dir, "categorized.csv")

	out, err := execute(t, "profiles", "create", "alice", "--seed", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Created profile alice")

	out, err = execute(t, "categories", "add", "Coffee", "30", "-p", "alice", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Added category Coffee (budget 30.00)")

	_, err = execute(t, "rules", "add", "starbucks", "Coffee", "-p", "alice", "--config", cfg)
	require.NoError(t, err)

	out, err = execute(t, "process", "-p", "alice", "-i", input, "-o", categorized, "-f", "json", "--config", cfg)
	require.NoError(t, err)

	var rep map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, float64(2), rep["rows"])
	assert.Equal(t, float64(1), rep["skipped"])

	data, err := os.ReadFile(categorized)
	require.NoError(t, err)
	assert.Equal(t, "Date,Description,Debit,Credit,Category\n"+
		"03/14/2024,STARBUCKS 123,5.50,,Coffee\n"+
		"03/15/2024,SHELL OIL 5743,40.00,,NEEDS CATEGORY\n", string(data))

	delivered, err := filepath.Glob(filepath.Join(dir, "out", "alice_*.csv"))
	require.NoError(t, err)
	assert.Len(t, delivered, 1)

	out, err = execute(t, "rules", "list", "-p", "alice", "--config", cfg)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "STARBUCKS")
	assert.Contains(t, lines[2], "SHELL OIL")
	assert.Contains(t, lines[2], "NEEDS CATEGORY")

	_, err = execute(t, "rules", "rename", "shell oil", "SHELL", "Gas", "-p", "alice", "--config", cfg)
	require.NoError(t, err)

	out, err = execute(t, "summary", "-p", "alice", "-i", categorized, "-f", "csv", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Coffee,5.50,30.00,24.50,1")
	assert.Contains(t, out, "NEEDS CATEGORY,40.00,0.00,-40.00,1")

	out, err = execute(t, "categories", "update", "coffee", "--budget", "45", "-p", "alice", "--config", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "Updated category Coffee (budget 45.00)")
}

func TestCLI_Errors(t *testing.T) {
	dir := t.TempDir()
	cfg := writeConfig(t, dir)

	_, err := execute(t, "profiles", "create", "bob", "--config", cfg)
	require.NoError(t, err)

	_, err = execute(t, "profiles", "create", "bob", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	_, err = execute(t, "rules", "add", "uber", "Transport", "-p", "bob", "--config", cfg)
	require.NoError(t, err)
	_, err = execute(t, "rules", "add", "UBER", "Food", "-p", "bob", "--config", cfg)
	require.Error(t, err)

	_, err = execute(t, "rules", "delete", "lyft", "-p", "bob", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	_, err = execute(t, "rules", "list", "-p", "nobody", "--config", cfg)
	require.Error(t, err)

	_, err = execute(t, "process", "-p", "bob", "-i", filepath.Join(dir, "missing.csv"), "--config", cfg)
	require.Error(t, err)

	headerless := filepath.Join(dir, "bad.csv")
	require.NoError(t, os.WriteFile(headerless, []byte("When,What\n1,2\n"), 0600))
	_, err = execute(t, "process", "-p", "bob", "-i", headerless, "-o", "", "--config", cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "processing failed after 0 rows")

	out, err := execute(t, "profiles", "list", "--config", cfg)
	require.NoError(t, err)
	assert.Equal(t, "bob\n", out)

	_, err = execute(t, "profiles", "delete", "bob", "--config", cfg)
	require.NoError(t, err)
}
