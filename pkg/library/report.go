package library

import (
	"fmt"
	"strings"
)

// EntryError is a cue that could not be built.
type EntryError struct {
	File  string
	Line  int
	Token string
	Err   error
}

func (e *EntryError) Error() string {
	if e.Token == "" {
		return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("%s:%d: token %q: %v", e.File, e.Line, e.Token, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// LoadReport collects every problem found while loading a team, so the
// operator can fix all of them at once. Cues that loaded fine are kept.
type LoadReport struct {
	Missing []string
	Errors  []*EntryError
}

// OK reports whether nothing went wrong.
func (r *LoadReport) OK() bool {
	return len(r.Missing) == 0 && len(r.Errors) == 0
}

func (r *LoadReport) Error() string {
	var b strings.Builder
	if len(r.Missing) > 0 {
		fmt.Fprintf(&b, "%d missing file(s): %s", len(r.Missing), strings.Join(r.Missing, ", "))
	}
	for _, e := range r.Errors {
		if b.Len() > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.Error())
	}
	return b.String()
}

// Err returns the report as an error, or nil when it is empty.
func (r *LoadReport) Err() error {
	if r.OK() {
		return nil
	}
	return r
}
