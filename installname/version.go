package installname

import (
	"fmt"
	"strings"

	"golang.org/x/mod/semver"
)

// canonicalVersion maps a dylib version such as "5.9" or "1.0.0" onto a
// semver string. Dylib versions have at most three components.
func canonicalVersion(v string) (string, bool) {
	if v == "" {
		return "", false
	}
	sv := semver.Canonical("v" + v)
	if sv == "" {
		return "", false
	}
	return sv, true
}

// CheckVersions reports an error when a dependency's current version is
// older than the compatibility version it claims. Dependencies without
// version information pass.
func CheckVersions(dep Dependency) error {
	compat, ok := canonicalVersion(dep.CompatVersion)
	if !ok {
		return nil
	}
	current, ok := canonicalVersion(dep.CurrentVersion)
	if !ok {
		return nil
	}
	if semver.Compare(current, compat) < 0 {
		return fmt.Errorf("%s: current version %s is older than compatibility version %s",
			dep.Ref, dep.CurrentVersion, dep.CompatVersion)
	}
	return nil
}

// Inspection describes one listed dependency and what a fixup would do to it.
type Inspection struct {
	Dependency
	Rewrite string
	Warning error
}

// Inspect parses a dependency listing without changing anything.
func Inspect(lines []string, token string) []Inspection {
	var out []Inspection
	for _, line := range lines {
		dep, ok := ParseDependency(line)
		if !ok {
			continue
		}
		in := Inspection{Dependency: dep, Warning: CheckVersions(dep)}
		if ref, ok := ParseReference(line); ok {
			in.Rewrite = RewriteReference(ref, token)
		}
		out = append(out, in)
	}
	return out
}

// String formats an inspection as one report line.
func (in Inspection) String() string {
	var sb strings.Builder
	sb.WriteString(in.Ref)
	if in.CompatVersion != "" {
		fmt.Fprintf(&sb, " [compat %s", in.CompatVersion)
		if in.CurrentVersion != "" {
			fmt.Fprintf(&sb, ", current %s", in.CurrentVersion)
		}
		sb.WriteString("]")
	}
	if in.Rewrite != "" {
		fmt.Fprintf(&sb, " -> %s", in.Rewrite)
	}
	return sb.String()
}
