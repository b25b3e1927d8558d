package installname

import (
	"regexp"
	"strings"
)

// RPath is the dyld placeholder for the runpath search list.
const RPath = "@rpath"

// LoaderPath is the dyld placeholder for the directory of the loading image.
const LoaderPath = "@loader_path"

var (
	rpathRef = regexp.MustCompile(`(` + regexp.QuoteMeta(RPath) + `\S*)`)
	// QtCore.framework/Versions/5/QtCore -> QtCore
	qtFramework = regexp.MustCompile(`Qt.*/(Qt.*?)$`)
	versions    = regexp.MustCompile(`\(compatibility version ([0-9.]+)(?:, current version ([0-9.]+))?\)`)
)

// ParseReference returns the @rpath reference contained in one line of a
// dependency listing.
func ParseReference(line string) (string, bool) {
	line = strings.TrimSpace(line)
	m := rpathRef.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// RewriteReference substitutes token for every @rpath in ref and collapses
// nested Qt framework paths.
func RewriteReference(ref, token string) string {
	return CollapseFramework(SubstituteToken(ref, token))
}

// SubstituteToken replaces every @rpath in ref with token.
func SubstituteToken(ref, token string) string {
	return strings.ReplaceAll(ref, RPath, token)
}

// CollapseFramework turns ".../QtName.framework/Versions/N/QtName" into
// ".../QtName". Other references are returned unchanged.
func CollapseFramework(ref string) string {
	loc := qtFramework.FindStringSubmatchIndex(ref)
	if loc == nil {
		return ref
	}
	return ref[:loc[0]] + ref[loc[2]:loc[3]] + ref[loc[1]:]
}

// ParseDependency splits an otool -L line into its reference and versions.
// The header line naming the inspected file is not a dependency.
func ParseDependency(line string) (Dependency, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasSuffix(line, ":") {
		return Dependency{}, false
	}
	var dep Dependency
	if loc := versions.FindStringSubmatchIndex(line); loc != nil {
		dep.CompatVersion = line[loc[2]:loc[3]]
		if loc[4] >= 0 {
			dep.CurrentVersion = line[loc[4]:loc[5]]
		}
		line = strings.TrimSpace(line[:loc[0]])
	}
	dep.Ref = line
	return dep, dep.Ref != ""
}
