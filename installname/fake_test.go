package installname

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"
)

// recorder logs every tool call in order, shared across the fakes.
type recorder struct {
	mu    sync.Mutex
	calls []string
}

func (r *recorder) add(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, fmt.Sprintf(format, args...))
}

type fakeLister struct {
	rec     *recorder
	listing map[string][]string
	err     map[string]error
}

func (f *fakeLister) List(_ context.Context, path string) ([]string, error) {
	f.rec.add("list %s", path)
	if err := f.err[path]; err != nil {
		return nil, err
	}
	return f.listing[path], nil
}

type fakePatcher struct {
	rec *recorder
	err map[string]error
}

func (f *fakePatcher) Change(_ context.Context, path, oldRef, newRef string) error {
	f.rec.add("change %s %s %s", path, oldRef, newRef)
	return f.err[oldRef]
}

type fakeSigner struct {
	rec *recorder
	err error
}

func (f *fakeSigner) Sign(_ context.Context, path string) error {
	f.rec.add("sign %s", path)
	return f.err
}

// fixture returns the named file of testdata/otool.txtar.
func fixture(t *testing.T, name string) string {
	t.Helper()
	ar, err := txtar.ParseFile(filepath.Join("testdata", "otool.txtar"))
	require.NoError(t, err)
	for _, f := range ar.Files {
		if f.Name == name {
			return string(f.Data)
		}
	}
	t.Fatalf("fixture %s not found", name)
	return ""
}

func fixtureLines(t *testing.T, name string) []string {
	t.Helper()
	return strings.Split(strings.TrimRight(fixture(t, name), "\n"), "\n")
}

// wantRewrites parses a NAME.want fixture into Rewrites.
func wantRewrites(t *testing.T, name string) []Rewrite {
	t.Helper()
	var want []Rewrite
	for _, line := range strings.Split(fixture(t, name), "\n") {
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		require.Len(t, fields, 2, "bad want line %q", line)
		want = append(want, Rewrite{Old: fields[0], New: fields[1]})
	}
	return want
}

// writeStub writes an executable shell script into dir.
func writeStub(t *testing.T, dir, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs need a POSIX shell")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}
