package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mainListing = `%s:
	@rpath/libopenstudiolib.dylib (compatibility version 0.0.0, current version 0.0.0)
	@rpath/QtWidgets.framework/Versions/5/QtWidgets (compatibility version 5.9.0, current version 5.9.6)
	/usr/lib/libSystem.B.dylib (compatibility version 1.0.0, current version 1252.50.4)
`

type bundle struct {
	dir, main, listing, calls string
	otool, installNameTool    string
}

// newBundle lays out a fake bundle with shell stubs for otool, which only
// knows the main binary, and install_name_tool, which logs its arguments.
func newBundle(t *testing.T) *bundle {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell stubs need a POSIX shell")
	}
	tools := t.TempDir()
	b := &bundle{
		dir:     t.TempDir(),
		listing: filepath.Join(tools, "listing.txt"),
		calls:   filepath.Join(tools, "calls.log"),
	}
	b.main = filepath.Join(b.dir, "OpenStudioApp")
	require.NoError(t, os.WriteFile(b.main, nil, 0o644))
	require.NoError(t, os.WriteFile(b.listing, []byte(strings.Replace(mainListing, "%s", b.main, 1)), 0o644))

	b.otool = filepath.Join(tools, "otool")
	require.NoError(t, os.WriteFile(b.otool, []byte(`#!/bin/sh
case "$2" in
  */OpenStudioApp) cat "`+b.listing+`" ;;
  *) echo "error: $2: can't open file" >&2; exit 1 ;;
esac
`), 0o755))
	b.installNameTool = filepath.Join(tools, "install_name_tool")
	require.NoError(t, os.WriteFile(b.installNameTool, []byte(`#!/bin/sh
printf '%s\n' "$*" >> "`+b.calls+`"
`), 0o755))
	return b
}

func (b *bundle) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	argv := append([]string{"rpathfix", "--otool", b.otool, "--install-name-tool", b.installNameTool}, args...)
	err := RootCommand(&out).Run(context.Background(), argv)
	return out.String(), err
}

func (b *bundle) loggedCalls(t *testing.T) []string {
	t.Helper()
	data, err := os.ReadFile(b.calls)
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestRootCommand_FixBundle(t *testing.T) {
	b := newBundle(t)

	out, err := b.run(t, b.main)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"-change @rpath/libopenstudiolib.dylib @loader_path/libopenstudiolib.dylib " + b.main,
		"-change @rpath/QtWidgets.framework/Versions/5/QtWidgets @loader_path/QtWidgets " + b.main,
		"-change libopenstudiolib.dylib @loader_path/libopenstudiolib.dylib " + filepath.Join(b.dir, "openstudio_modeleditor.bundle"),
	}, b.loggedCalls(t))
	assert.Contains(t, out, "@rpath/QtWidgets.framework/Versions/5/QtWidgets -> @loader_path/QtWidgets\n")
	assert.Contains(t, out, filepath.Join(b.dir, "platforms", "libqcocoa.dylib")+"\n")
}

func TestRootCommand_DryRun(t *testing.T) {
	b := newBundle(t)

	out, err := b.run(t, "--dry-run", b.main)
	require.NoError(t, err)
	assert.Empty(t, b.loggedCalls(t))
	assert.Contains(t, out, "@rpath/libopenstudiolib.dylib -> @loader_path/libopenstudiolib.dylib\n")
}

func TestRootCommand_Strict(t *testing.T) {
	b := newBundle(t)

	_, err := b.run(t, "--strict", b.main)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QtConcurrent")
	// The main binary was patched before the first sibling went missing.
	assert.Len(t, b.loggedCalls(t), 2)
}

func TestRootCommand_ConfigLayout(t *testing.T) {
	b := newBundle(t)
	config := filepath.Join(t.TempDir(), "layout.yaml")
	require.NoError(t, os.WriteFile(config, []byte(`main_token: "@executable_path/../Frameworks"`), 0o644))

	_, err := b.run(t, "--config", config, b.main)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"-change @rpath/libopenstudiolib.dylib @executable_path/../Frameworks/libopenstudiolib.dylib " + b.main,
		"-change @rpath/QtWidgets.framework/Versions/5/QtWidgets @executable_path/../Frameworks/QtWidgets " + b.main,
	}, b.loggedCalls(t))
}

func TestRootCommand_MissingArgument(t *testing.T) {
	err := RootCommand(&bytes.Buffer{}).Run(context.Background(), []string{"rpathfix"})
	assert.ErrorIs(t, err, errMissingBinary)
}

func TestRootCommand_UnknownLister(t *testing.T) {
	err := RootCommand(&bytes.Buffer{}).Run(context.Background(), []string{"rpathfix", "--lister", "ldd", "/a/b/Main.bundle"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown lister")
}

func TestInspectCommand(t *testing.T) {
	b := newBundle(t)
	var out bytes.Buffer

	err := RootCommand(&out).Run(context.Background(), []string{
		"rpathfix", "inspect", "--otool", b.otool, "--token", "@loader_path/..", b.main,
	})
	require.NoError(t, err)
	assert.Equal(t, b.main+"\n"+
		"\t@rpath/libopenstudiolib.dylib [compat 0.0.0, current 0.0.0] -> @loader_path/../libopenstudiolib.dylib\n"+
		"\t@rpath/QtWidgets.framework/Versions/5/QtWidgets [compat 5.9.0, current 5.9.6] -> @loader_path/../QtWidgets\n"+
		"\t/usr/lib/libSystem.B.dylib [compat 1.0.0, current 1252.50.4]\n", out.String())
	assert.Empty(t, b.loggedCalls(t))
}

func TestResolveBinary(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	got, err := resolveBinary("Main.bundle")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "Main.bundle"), got)

	abs := filepath.Join(cwd, "a", "..", "Main.bundle")
	got, err = resolveBinary(abs)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cwd, "Main.bundle"), got)

	_, err = resolveBinary("")
	assert.ErrorIs(t, err, errMissingBinary)
}
