package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"rpathfix/installname"
	"rpathfix/layout"
)

const (
	listerOtool = "otool"
	listerMachO = "macho"
)

type fixOptions struct {
	config          string
	strict          bool
	dryRun          bool
	resign          bool
	lister          string
	otool           string
	installNameTool string
	codesign        string
}

type inspectOptions struct {
	lister string
	otool  string
	token  string
}

func fixBundle(ctx context.Context, out io.Writer, bin string, opts fixOptions) error {
	l, err := layout.Load(opts.config)
	if err != nil {
		return err
	}
	lister, err := newLister(opts.lister, opts.otool)
	if err != nil {
		return err
	}

	rw := &installname.Rewriter{
		Lister:  lister,
		Patcher: installname.InstallNameTool{Path: opts.installNameTool},
		Out:     out,
		DryRun:  opts.dryRun,
	}
	if opts.resign {
		rw.Signer = installname.Codesign{Path: opts.codesign}
	}
	d := &installname.Driver{
		Rewriter: rw,
		Layout:   l,
		Strict:   opts.strict,
	}

	report, err := d.Run(ctx, bin)
	if err != nil {
		return err
	}
	if len(report.Missing) > 0 {
		slog.Warn("layout entries not found.", "entries", report.Missing)
	}
	return nil
}

func inspectBinary(ctx context.Context, out io.Writer, bin string, opts inspectOptions) error {
	lister, err := newLister(opts.lister, opts.otool)
	if err != nil {
		return err
	}
	lines, err := lister.List(ctx, bin)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, bin)
	for _, in := range installname.Inspect(lines, opts.token) {
		fmt.Fprintf(out, "\t%s\n", in)
		if in.Warning != nil {
			slog.Warn("suspicious dependency version.", "error", in.Warning)
		}
	}
	return nil
}

func newLister(kind, otool string) (installname.Lister, error) {
	switch kind {
	case "", listerOtool:
		return installname.Otool{Path: otool}, nil
	case listerMachO:
		return installname.MachOLister{}, nil
	default:
		return nil, fmt.Errorf("unknown lister %q, want %s or %s", kind, listerOtool, listerMachO)
	}
}

// resolveBinary makes arg absolute against the working directory.
func resolveBinary(arg string) (string, error) {
	if arg == "" {
		return "", errMissingBinary
	}
	if filepath.IsAbs(arg) {
		return filepath.Clean(arg), nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, arg), nil
}
