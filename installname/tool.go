package installname

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// Lister reports the dynamic library references of a binary, one per line.
type Lister interface {
	List(ctx context.Context, path string) ([]string, error)
}

// Patcher rewrites one install name reference inside a binary in place.
type Patcher interface {
	Change(ctx context.Context, path, oldRef, newRef string) error
}

// Signer re-signs a binary after it has been modified.
type Signer interface {
	Sign(ctx context.Context, path string) error
}

// A ToolError reports a failed external tool invocation.
type ToolError struct {
	Tool string
	Args []string
	// ExitCode is -1 when the tool could not be started at all.
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	msg := e.Stderr
	if msg == "" {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("%s %s: exit %d: %s", e.Tool, strings.Join(e.Args, " "), e.ExitCode, msg)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// run executes name with args and returns its standard output.
func run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		return stdout.Bytes(), &ToolError{
			Tool:     name,
			Args:     args,
			ExitCode: code,
			Stderr:   strings.TrimSpace(stderr.String()),
			Err:      err,
		}
	}
	return stdout.Bytes(), nil
}

// Otool lists dependencies with "otool -L".
type Otool struct {
	// Path of the otool executable; "otool" when empty.
	Path string
}

func (o Otool) List(ctx context.Context, path string) ([]string, error) {
	out, err := run(ctx, orDefault(o.Path, "otool"), "-L", path)
	if err != nil {
		return nil, err
	}
	return splitLines(out), nil
}

// InstallNameTool patches references with "install_name_tool -change".
type InstallNameTool struct {
	Path string
}

func (t InstallNameTool) Change(ctx context.Context, path, oldRef, newRef string) error {
	_, err := run(ctx, orDefault(t.Path, "install_name_tool"), "-change", oldRef, newRef, path)
	return err
}

// Codesign applies an ad-hoc signature with "codesign --force --sign -".
type Codesign struct {
	Path string
}

func (c Codesign) Sign(ctx context.Context, path string) error {
	_, err := run(ctx, orDefault(c.Path, "codesign"), "--force", "--sign", "-", path)
	return err
}

func splitLines(out []byte) []string {
	text := strings.TrimRight(string(out), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
