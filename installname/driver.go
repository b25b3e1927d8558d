package installname

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"rpathfix/layout"
)

// Driver rewrites a main binary and the sibling files named by a layout.
type Driver struct {
	Rewriter *Rewriter
	Layout   *layout.Layout
	// Strict stops at the first missing file or failed tool. Otherwise
	// every failure is logged and the run carries on.
	Strict bool
	Logger *slog.Logger
}

type runContext struct {
	report    *Report
	processed map[string]bool
}

// Run patches mainPath with the layout's main token, then every layout
// target in order, then every direct change in order. A file matched by
// more than one target is patched once; mainPath is always patched even
// when a target also names it.
//
// In strict mode the first failure is returned along with the partial
// report. Otherwise Run only fails on a cancelled context.
func (d *Driver) Run(ctx context.Context, mainPath string) (*Report, error) {
	dir := filepath.Dir(mainPath)
	rc := &runContext{
		report:    &Report{Dir: dir},
		processed: make(map[string]bool),
	}
	d.logger().Info("fix up bundle.", "binary", mainPath, "dir", dir, "strict", d.Strict)

	if err := d.fixup(ctx, rc, mainPath, d.Layout.MainToken); err != nil {
		return rc.report, err
	}
	for _, t := range d.Layout.Targets {
		files, err := layout.Resolve(dir, t.Path)
		if err != nil {
			if err := d.missing(rc, t.Path, err); err != nil {
				return rc.report, err
			}
			continue
		}
		for _, file := range files {
			if rc.processed[file] {
				d.logger().Debug("skip duplicate target.", "path", file)
				continue
			}
			rc.processed[file] = true
			if err := d.fixup(ctx, rc, file, t.Token); err != nil {
				return rc.report, err
			}
		}
	}
	for _, c := range d.Layout.Changes {
		files, err := layout.Resolve(dir, c.Target)
		if err != nil {
			if err := d.missing(rc, c.Target, err); err != nil {
				return rc.report, err
			}
			continue
		}
		if err := d.change(ctx, rc, files[0], c.Old, c.New); err != nil {
			return rc.report, err
		}
	}

	d.logger().Info("bundle fixed up.", "files", len(rc.report.Results), "rewrites", rc.report.Rewrites())
	return rc.report, nil
}

func (d *Driver) fixup(ctx context.Context, rc *runContext, path, token string) error {
	if err := d.check(ctx, rc, path); err != nil {
		return err
	}
	return d.record(rc, d.Rewriter.Fixup(ctx, path, token))
}

func (d *Driver) change(ctx context.Context, rc *runContext, path, oldRef, newRef string) error {
	if err := d.check(ctx, rc, path); err != nil {
		return err
	}
	return d.record(rc, d.Rewriter.Change(ctx, path, oldRef, newRef))
}

// check fails on cancellation; in strict mode it also requires path to
// exist.
func (d *Driver) check(ctx context.Context, rc *runContext, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !d.Strict {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		rc.report.Missing = append(rc.report.Missing, layout.Rel(rc.report.Dir, path))
		return fmt.Errorf("missing bundle file: %w", err)
	}
	return nil
}

func (d *Driver) missing(rc *runContext, entry string, err error) error {
	rc.report.Missing = append(rc.report.Missing, entry)
	if d.Strict {
		return err
	}
	d.logger().Warn("skip layout entry.", "entry", entry, "error", err)
	return nil
}

func (d *Driver) record(rc *runContext, res *Result) error {
	rc.report.Results = append(rc.report.Results, res)
	err := res.Error()
	if err == nil {
		return nil
	}
	if d.Strict {
		return err
	}
	d.logger().Warn("fix up incomplete.", "path", res.Path, "error", err)
	return nil
}

func (d *Driver) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}
