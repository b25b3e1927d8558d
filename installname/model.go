package installname

import "errors"

// Rewrite is one install name change applied to a binary.
type Rewrite struct {
	Old string
	New string
	Err error
}

// Result collects what a single fixup or direct change did to one file.
type Result struct {
	Path     string
	Rewrites []Rewrite
	Signed   bool
	// Err is set when the file could not be inspected or signed. Failures of
	// individual rewrites live on the Rewrite itself.
	Err error
}

// Failed reports whether anything went wrong for this file.
func (r *Result) Failed() bool {
	return r.Error() != nil
}

// Error joins the file-level error with every rewrite error, in order.
func (r *Result) Error() error {
	var errs []error
	if r.Err != nil {
		errs = append(errs, r.Err)
	}
	for _, rw := range r.Rewrites {
		if rw.Err != nil {
			errs = append(errs, rw.Err)
		}
	}
	return errors.Join(errs...)
}

// Dependency is one parsed line of a dependency listing.
type Dependency struct {
	Ref            string
	CompatVersion  string
	CurrentVersion string
}

// Report is the outcome of a whole driver run.
type Report struct {
	Dir     string
	Results []*Result
	// Missing holds layout entries that did not resolve to a file.
	Missing []string
}

// Rewrites counts the rewrites that were applied without error.
func (r *Report) Rewrites() int {
	n := 0
	for _, res := range r.Results {
		for _, rw := range res.Rewrites {
			if rw.Err == nil {
				n++
			}
		}
	}
	return n
}

// Err joins every failure recorded in the report.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if err := res.Error(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
