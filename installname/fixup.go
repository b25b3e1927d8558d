package installname

import (
	"context"
	"fmt"
	"io"
	"log/slog"
)

// Rewriter applies install name rewrites to single files.
type Rewriter struct {
	Lister  Lister
	Patcher Patcher
	// Signer, when set, re-signs every file that received a rewrite.
	Signer Signer
	// Out receives the human readable mapping of every rewrite.
	Out io.Writer
	// DryRun prints the mappings without touching any file.
	DryRun bool
}

// Fixup lists the dependencies of path and replaces the @rpath prefix of
// every matching reference with token, in listing order. A failed rewrite
// does not stop the remaining ones.
func (r *Rewriter) Fixup(ctx context.Context, path, token string) *Result {
	res := &Result{Path: path}
	r.printf("\n%s\n", path)

	lines, err := r.Lister.List(ctx, path)
	if err != nil {
		res.Err = fmt.Errorf("list dependencies of %s: %w", path, err)
		return res
	}

	for _, line := range lines {
		oldRef, ok := ParseReference(line)
		if !ok {
			continue
		}
		newRef := RewriteReference(oldRef, token)
		r.printf("%s -> %s\n", oldRef, newRef)
		res.Rewrites = append(res.Rewrites, r.apply(ctx, path, oldRef, newRef))
	}
	r.sign(ctx, res)
	return res
}

// Change rewrites oldRef to newRef in path unconditionally.
func (r *Rewriter) Change(ctx context.Context, path, oldRef, newRef string) *Result {
	res := &Result{Path: path}
	r.printf("%s -> %s in %s\n", oldRef, newRef, path)
	res.Rewrites = append(res.Rewrites, r.apply(ctx, path, oldRef, newRef))
	r.sign(ctx, res)
	return res
}

func (r *Rewriter) apply(ctx context.Context, path, oldRef, newRef string) Rewrite {
	rw := Rewrite{Old: oldRef, New: newRef}
	if r.DryRun {
		return rw
	}
	if err := r.Patcher.Change(ctx, path, oldRef, newRef); err != nil {
		rw.Err = fmt.Errorf("change %s in %s: %w", oldRef, path, err)
	}
	return rw
}

func (r *Rewriter) sign(ctx context.Context, res *Result) {
	if r.Signer == nil || r.DryRun {
		return
	}
	patched := false
	for _, rw := range res.Rewrites {
		if rw.Err == nil {
			patched = true
			break
		}
	}
	if !patched {
		return
	}
	if err := r.Signer.Sign(ctx, res.Path); err != nil {
		res.Err = fmt.Errorf("sign %s: %w", res.Path, err)
		return
	}
	res.Signed = true
	slog.Debug("re-signed binary.", "path", res.Path)
}

func (r *Rewriter) printf(format string, args ...any) {
	if r.Out == nil {
		return
	}
	fmt.Fprintf(r.Out, format, args...)
}
