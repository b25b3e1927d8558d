package layout

import (
	"errors"
	"io/fs"
	"os"
	pathpkg "path"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/mod/module"
)

// ErrNoMatch is reported when a glob entry matches no file.
var ErrNoMatch = errors.New("no matching files found")

// hasFilePathPrefix reports whether the filesystem path s
// begins with the elements in prefix.
//
// hasFilePathPrefix is case-sensitive (except for volume names) even if the
// filesystem is not, and assumes that all path separators are canonicalized
// to filepath.Separator (as returned by filepath.Clean).
func hasFilePathPrefix(s, prefix string) bool {
	sv := filepath.VolumeName(s)
	pv := filepath.VolumeName(prefix)
	s = s[len(sv):]
	prefix = prefix[len(pv):]

	if sv != pv {
		sv = strings.ToUpper(sv)
		pv = strings.ToUpper(pv)
	}

	switch {
	default:
		return false
	case sv != pv:
		return false
	case len(s) == len(prefix):
		return s == prefix
	case prefix == "":
		return true
	case len(s) > len(prefix):
		if prefix[len(prefix)-1] == filepath.Separator {
			return strings.HasPrefix(s, prefix)
		}
		return s[len(prefix)] == filepath.Separator && s[:len(prefix)] == prefix
	}
}

// trimFilePathPrefix returns s without the leading path elements in prefix.
// If s does not start with prefix, s is returned unchanged. If s equals
// prefix, trimFilePathPrefix returns "".
func trimFilePathPrefix(s, prefix string) string {
	if prefix == "" {
		return s
	}
	if !hasFilePathPrefix(s, prefix) {
		return s
	}

	trimmed := s[len(prefix):]
	if len(trimmed) > 0 && os.IsPathSeparator(trimmed[0]) {
		if runtime.GOOS == "windows" && prefix == filepath.VolumeName(prefix) && len(prefix) == 2 && prefix[1] == ':' {
			// Keep the separator so the result stays absolute on a bare drive.
		} else {
			trimmed = trimmed[1:]
		}
	}
	return trimmed
}

// withFilePathSeparator returns s with a trailing path separator, or the empty
// string if s is empty.
func withFilePathSeparator(s string) string {
	if s == "" || os.IsPathSeparator(s[len(s)-1]) {
		return s
	}
	return s + string(filepath.Separator)
}

// quoteGlob returns s with all Glob metacharacters quoted.
// Backslash is left alone, it can appear in a file path on Windows.
func quoteGlob(s string) string {
	if !hasMeta(s) {
		return s
	}
	var sb strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']':
			sb.WriteByte('\\')
		}
		sb.WriteRune(c)
	}
	return sb.String()
}

func hasMeta(s string) bool {
	return strings.ContainsAny(s, `*?[]`)
}

// isBadLayoutName reports whether a single path element cannot name a file
// portably inside a bundle.
func isBadLayoutName(name string) bool {
	if name == "" {
		return true
	}
	return module.CheckFilePath(name) != nil
}

// A LayoutError indicates a problem with one layout entry.
type LayoutError struct {
	Entry string
	Err   error
}

func (e *LayoutError) Error() string {
	return "entry " + e.Entry + ": " + e.Err.Error()
}

func (e *LayoutError) Unwrap() error {
	return e.Err
}

// CheckEntry validates a slash-separated entry relative to the bundle
// directory. Glob patterns are allowed.
func CheckEntry(entry string) error {
	if entry == "." || !fs.ValidPath(entry) {
		return &LayoutError{Entry: entry, Err: errors.New("invalid relative path")}
	}
	if !hasMeta(entry) {
		if err := module.CheckFilePath(entry); err != nil {
			return &LayoutError{Entry: entry, Err: err}
		}
		return nil
	}
	if _, err := pathpkg.Match(entry, ""); err != nil {
		return &LayoutError{Entry: entry, Err: errors.New("invalid pattern syntax")}
	}
	for _, elem := range strings.Split(entry, "/") {
		if !hasMeta(elem) && isBadLayoutName(elem) {
			return &LayoutError{Entry: entry, Err: errors.New("invalid name " + elem)}
		}
	}
	return nil
}

// Resolve turns an entry into the files it names under dir. A literal entry
// yields exactly one path whether or not it exists. A glob entry yields the
// regular files it matches in sorted order, or ErrNoMatch.
func Resolve(dir, entry string) (files []string, err error) {
	defer func() {
		if err != nil {
			err = &LayoutError{Entry: entry, Err: err}
		}
	}()

	if err := CheckEntry(entry); err != nil {
		var le *LayoutError
		if errors.As(err, &le) {
			return nil, le.Err
		}
		return nil, err
	}
	if !hasMeta(entry) {
		return []string{filepath.Join(dir, filepath.FromSlash(entry))}, nil
	}

	match, err := filepath.Glob(quoteGlob(withFilePathSeparator(dir)) + filepath.FromSlash(entry))
	if err != nil {
		return nil, err
	}
	for _, file := range match {
		info, err := os.Stat(file)
		if err != nil {
			return nil, err
		}
		if !info.Mode().IsRegular() {
			continue
		}
		files = append(files, file)
	}
	if len(files) == 0 {
		return nil, ErrNoMatch
	}
	sort.Strings(files)
	return files, nil
}

// Rel reports file relative to dir with forward slashes, for display.
func Rel(dir, file string) string {
	return filepath.ToSlash(trimFilePathPrefix(file, filepath.Clean(dir)))
}
