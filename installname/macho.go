package installname

import (
	"context"
	"fmt"

	"github.com/blacktop/go-macho"
)

// MachOLister reads dependent libraries straight from the Mach-O load
// commands, so it works where otool is not installed. Its output mirrors
// otool -L: a header line followed by one tab-indented reference per line.
type MachOLister struct{}

func (MachOLister) List(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	deps, err := readDylibs(path)
	if err != nil {
		return nil, fmt.Errorf("read mach-o %s: %w", path, err)
	}
	lines := []string{path + ":"}
	for _, d := range deps {
		lines = append(lines, fmt.Sprintf("\t%s (compatibility version %s, current version %s)",
			d.Ref, d.CompatVersion, d.CurrentVersion))
	}
	return lines, nil
}

// readDylibs returns the dylib references of a thin or universal image.
// For universal images the references of every slice are merged, keeping
// first-seen order.
func readDylibs(path string) ([]Dependency, error) {
	fat, err := macho.OpenFat(path)
	if err != nil {
		// Thin image, or not Mach-O at all; Open tells which.
		f, err := macho.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return fileDylibs(f), nil
	}
	defer fat.Close()

	var deps []Dependency
	seen := make(map[string]bool)
	for _, arch := range fat.Arches {
		for _, d := range fileDylibs(arch.File) {
			if seen[d.Ref] {
				continue
			}
			seen[d.Ref] = true
			deps = append(deps, d)
		}
	}
	return deps, nil
}

// fileDylibs lists every load command naming a library the image links
// against. The image's own LC_ID_DYLIB is not one of them.
func fileDylibs(f *macho.File) []Dependency {
	var deps []Dependency
	for _, l := range f.Loads {
		switch l := l.(type) {
		case *macho.Dylib:
			deps = append(deps, dependency(l.Name, l.CompatVersion, l.CurrentVersion))
		case *macho.WeakDylib:
			deps = append(deps, dependency(l.Name, l.CompatVersion, l.CurrentVersion))
		case *macho.ReExportDylib:
			deps = append(deps, dependency(l.Name, l.CompatVersion, l.CurrentVersion))
		case *macho.UpwardDylib:
			deps = append(deps, dependency(l.Name, l.CompatVersion, l.CurrentVersion))
		}
	}
	return deps
}

func dependency(name string, compat, current any) Dependency {
	return Dependency{
		Ref:            name,
		CompatVersion:  fmt.Sprint(compat),
		CurrentVersion: fmt.Sprint(current),
	}
}
