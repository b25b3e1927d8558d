// Package layout describes which files of an application bundle get their
// install names rewritten, and how.
package layout

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultLayout []byte

// Target is a file next to the main binary whose @rpath references are
// rewritten to Token.
type Target struct {
	Path  string `yaml:"path"`
	Token string `yaml:"token,omitempty"`
}

// Change is a single unconditional reference rewrite inside Target.
type Change struct {
	Target string `yaml:"target"`
	Old    string `yaml:"old"`
	New    string `yaml:"new"`
}

// Layout is the full set of files and rewrites for one bundle.
type Layout struct {
	// MainToken replaces @rpath in the main binary, and in every target
	// that does not name its own token.
	MainToken string   `yaml:"main_token"`
	Targets   []Target `yaml:"targets"`
	Changes   []Change `yaml:"changes"`
}

// Default returns the built-in bundle layout.
func Default() *Layout {
	l, err := Parse(defaultLayout)
	if err != nil {
		panic(fmt.Sprintf("layout: built-in default is invalid: %v", err))
	}
	return l
}

// Load reads a layout file. An empty path yields the built-in default.
func Load(path string) (*Layout, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout file: %w", err)
	}
	l, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse layout file %s: %w", filepath.Base(path), err)
	}
	return l, nil
}

// Parse decodes and validates a YAML layout. Unknown keys are rejected.
func Parse(data []byte) (*Layout, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var l Layout
	if err := dec.Decode(&l); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("layout is empty")
		}
		return nil, err
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Validate checks every entry and fills target tokens from MainToken.
func (l *Layout) Validate() error {
	if l.MainToken == "" {
		return errors.New("main_token is required")
	}
	if err := checkToken(l.MainToken); err != nil {
		return fmt.Errorf("main_token: %w", err)
	}
	for i := range l.Targets {
		t := &l.Targets[i]
		if err := CheckEntry(t.Path); err != nil {
			return err
		}
		if t.Token == "" {
			t.Token = l.MainToken
		}
		if err := checkToken(t.Token); err != nil {
			return fmt.Errorf("target %s: %w", t.Path, err)
		}
	}
	for _, c := range l.Changes {
		if err := CheckEntry(c.Target); err != nil {
			return err
		}
		if hasMeta(c.Target) {
			return &LayoutError{Entry: c.Target, Err: errors.New("change target must name a single file")}
		}
		if c.Old == "" || c.New == "" {
			return &LayoutError{Entry: c.Target, Err: errors.New("change needs both old and new")}
		}
	}
	return nil
}

// checkToken accepts dyld placeholders (@loader_path, @executable_path, ...)
// and absolute directories.
func checkToken(token string) error {
	if strings.HasPrefix(token, "@") || strings.HasPrefix(token, "/") {
		return nil
	}
	return fmt.Errorf("token %q must start with @ or /", token)
}
