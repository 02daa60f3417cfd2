package command

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func executeCommand(cmd *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return buf.String(), err
}

// cli runs commands against one data dir with logging kept out of stdout.
type cli struct {
	t       *testing.T
	dataDir string
}

func newCLI(t *testing.T) *cli {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CHATCACHE_LOG_LEVEL", "error")
	return &cli{t: t, dataDir: filepath.Join(home, "data")}
}

func (c *cli) run(args ...string) (string, string, error) {
	c.t.Helper()
	cmd := NewRootCmd("test")
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{"--data-dir", c.dataDir}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (c *cli) mustRun(args ...string) string {
	c.t.Helper()
	out, errOut, err := c.run(args...)
	if err != nil {
		c.t.Fatalf("%v: %v\n%s", args, err, errOut)
	}
	return out
}

func (c *cli) runJSON(dest any, args ...string) {
	c.t.Helper()
	out := c.mustRun(append([]string{"--json"}, args...)...)
	if err := json.Unmarshal([]byte(out), dest); err != nil {
		c.t.Fatalf("decode %v output %q: %v", args, out, err)
	}
}

func (c *cli) writeDelta(lines ...string) string {
	c.t.Helper()
	path := filepath.Join(c.t.TempDir(), "delta.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		c.t.Fatalf("write delta: %v", err)
	}
	return path
}

func TestRootCommandVersion(t *testing.T) {
	cmd := NewRootCmd("test")

	output, err := executeCommand(cmd, "--version")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !strings.Contains(output, "chatcache version test") {
		t.Fatalf("expected version output, got %q", output)
	}
}

func TestRootCommandHelp(t *testing.T) {
	cmd := NewRootCmd("test")

	output, err := executeCommand(cmd)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !strings.Contains(output, "local chat cache") {
		t.Fatalf("expected help output, got %q", output)
	}
}

func TestWriteCommandErrorHints(t *testing.T) {
	cmd := NewRootCmd("test")
	buf := new(bytes.Buffer)
	cmd.SetErr(buf)

	_ = writeCommandError(cmd, errString("no such column: seq"))
	if !strings.Contains(buf.String(), "Error: no such column: seq") || !strings.Contains(buf.String(), "chatcache clear") {
		t.Fatalf("expected schema hint, got %q", buf.String())
	}
}

type errString string

func (e errString) Error() string { return string(e) }
