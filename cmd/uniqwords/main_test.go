package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.txt")
	require.NoError(t, os.WriteFile(path, []byte("the quick brown fox\nThe QUICK dog."), 0o644))

	tests := []struct {
		name string
		args []string
		want string
	}{
		{name: "defaults", args: []string{path}, want: "Number of unique words: 5\n"},
		{name: "one worker", args: []string{"-workers", "1", path}, want: "Number of unique words: 5\n"},
		{name: "shared stream", args: []string{"-workers", "4", "-strategy", "shared", "-mode", "stream", path}, want: "Number of unique words: 5\n"},
		{name: "sharded with timeout", args: []string{"-strategy", "sharded", "-timeout", "1m", path}, want: "Number of unique words: 5\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, stdout, _ := runCLI(t, tt.args...)
			assert.Equal(t, 0, code)
			assert.Equal(t, tt.want, stdout)
		})
	}
}

func TestRun_Fragment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "word.txt")
	require.NoError(t, os.WriteFile(path, []byte("abcdefgh"), 0o644))

	_, stdout, _ := runCLI(t, "-workers", "2", "-boundary", "fragment", path)
	assert.Equal(t, "Number of unique words: 2\n", stdout)

	_, stdout, _ = runCLI(t, "-workers", "2", "-boundary", "align", path)
	assert.Equal(t, "Number of unique words: 1\n", stdout)
}

func TestRun_Usage(t *testing.T) {
	code, _, stderr := runCLI(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "Usage: uniqwords")

	code, _, _ = runCLI(t, "-workers", "0", "file.txt")
	assert.Equal(t, 2, code)

	code, _, _ = runCLI(t, "-workers", "100000000", "file.txt")
	assert.Equal(t, 2, code)

	code, _, _ = runCLI(t, "-strategy", "gossip", "file.txt")
	assert.Equal(t, 2, code)

	code, _, _ = runCLI(t, "-no-such-flag")
	assert.Equal(t, 2, code)

	code, _, _ = runCLI(t, "-h")
	assert.Equal(t, 0, code)
}

func TestRun_MissingFile(t *testing.T) {
	code, stdout, stderr := runCLI(t, filepath.Join(t.TempDir(), "missing.txt"))
	assert.Equal(t, 1, code)
	assert.Empty(t, stdout)
	assert.Contains(t, stderr, "resource unavailable")
}

func TestRun_BadConfigFile(t *testing.T) {
	code, _, stderr := runCLI(t, "-config", filepath.Join(t.TempDir(), "none.yaml"), "x.txt")
	assert.Equal(t, 1, code)
	assert.Contains(t, stderr, "Failed to load config")
}
