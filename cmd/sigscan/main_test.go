package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	gitignore "github.com/sabhiram/go-gitignore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestExplain(t *testing.T) {
	out := run(t, "explain", "6162??63{2-4}646566")
	assert.Contains(t, out, "engine:  trie")
	assert.Contains(t, out, "part 1: 6162??63")
	assert.Contains(t, out, "part 2: 646566  len 3-3  after {2-4}")
	assert.Contains(t, out, `regex:   (?s)\x61\x62.\x63.{2,4}\x64\x65\x66`)
}

func TestScanCommand(t *testing.T) {
	dir := t.TempDir()
	rules := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(rules, []byte(`
signatures:
  - name: evil
    hex: "6576696c"
logical:
  - name: both
    expression: "0&1"
    subsigs:
      - hex: "616263"
      - hex: "78797a"
`), 0o644))

	files := filepath.Join(dir, "files")
	require.NoError(t, os.Mkdir(files, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(files, "a.txt"), []byte("an evil file"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(files, "b.txt"), []byte("abc and xyz"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(files, "c.txt"), []byte("clean"), 0o644))

	out := run(t, "scan", "--rules", rules, "--color", "never", "-j", "2", files)
	assert.Contains(t, out, filepath.Join(files, "a.txt")+": evil @3-6")
	assert.Contains(t, out, filepath.Join(files, "b.txt")+": both [1 1]")
	assert.Contains(t, out, "scanned 3 files, 2 matched, 2 hits")
}

func TestScanCommandInterrupted(t *testing.T) {
	dir := t.TempDir()
	rules := filepath.Join(dir, "rules.yaml")
	require.NoError(t, os.WriteFile(rules, []byte("signatures:\n  - name: evil\n    hex: \"6576696c\"\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("evil"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Subcommands keep the context of an earlier execution.
	scanCmd.SetContext(ctx)
	t.Cleanup(func() {
		scanCmd.SetContext(context.Background())
		rootCmd.SetContext(context.Background())
	})
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs([]string{"scan", "--rules", rules, "--color", "never", dir})
	err := rootCmd.ExecuteContext(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, out.String(), "scanned")
}

func TestCollectFilesExclude(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"keep.php", "skip.log", "big.php"} {
		data := []byte("x")
		if name == "big.php" {
			data = bytes.Repeat([]byte("x"), 100)
		}
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}

	files, err := collectFiles([]string{dir}, gitignore.CompileIgnoreLines("*.log"), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "keep.php")}, files)

	files, err = collectFiles([]string{dir}, nil, 1000)
	require.NoError(t, err)
	assert.Len(t, files, 3)
}
