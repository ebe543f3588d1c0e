// Package diag holds the diagnostics produced by every stage of a build.
package diag

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Severity of a diagnostic. Only Error fails a build.
type Severity int

const (
	Warning Severity = iota
	Error
)

func (s Severity) String() string {
	if s == Error {
		return "error"
	}
	return "warning"
}

// Kind classifies a diagnostic.
type Kind string

const (
	KindParse              Kind = "parse_error"
	KindCycle              Kind = "dependency_cycle"
	KindMissingFile        Kind = "missing_file"
	KindMalformedExclusion Kind = "malformed_exclusion_argument"
	KindIO                 Kind = "io_failure"
	KindUnresolved         Kind = "unresolved_dependency"
	KindExcluded           Kind = "excluded"
	KindDuplicate          Kind = "duplicate_reference"
	KindUnrecognized       Kind = "unrecognized_declaration"
)

// Diagnostic is a single message attached to a file position.
type Diagnostic struct {
	Kind     Kind     `json:"kind"`
	Severity Severity `json:"severity"`
	File     string   `json:"file,omitempty"`
	Line     int      `json:"line,omitempty"`
	Message  string   `json:"message"`
}

// Errorf builds an error-severity diagnostic.
func Errorf(kind Kind, file string, line int, format string, args ...any) Diagnostic {
	return Diagnostic{Kind: kind, Severity: Error, File: file, Line: line, Message: fmt.Sprintf(format, args...)}
}

// Warnf builds a warning diagnostic.
func Warnf(kind Kind, file string, line int, format string, args ...any) Diagnostic {
	return Diagnostic{Kind: kind, Severity: Warning, File: file, Line: line, Message: fmt.Sprintf(format, args...)}
}

func (d Diagnostic) String() string {
	var b strings.Builder
	if d.File != "" {
		b.WriteString(d.File)
		if d.Line > 0 {
			fmt.Fprintf(&b, ":%d", d.Line)
		}
		b.WriteString(": ")
	}
	fmt.Fprintf(&b, "%s [%s]: %s", d.Severity, d.Kind, d.Message)
	return b.String()
}

// HasErrors reports whether any diagnostic in ds is an error.
func HasErrors(ds []Diagnostic) bool {
	for _, d := range ds {
		if d.Severity == Error {
			return true
		}
	}
	return false
}

// Count returns the number of errors and warnings in ds.
func Count(ds []Diagnostic) (errs, warns int) {
	for _, d := range ds {
		if d.Severity == Error {
			errs++
		} else {
			warns++
		}
	}
	return errs, warns
}

// List is an append-only, concurrency-safe diagnostic collector.
// Items come back in insertion order.
type List struct {
	mu    sync.Mutex
	items []Diagnostic
}

func (l *List) Add(ds ...Diagnostic) {
	if len(ds) == 0 {
		return
	}
	l.mu.Lock()
	l.items = append(l.items, ds...)
	l.mu.Unlock()
}

func (l *List) Items() []Diagnostic {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Diagnostic, len(l.items))
	copy(out, l.items)
	return out
}

func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

func (l *List) HasErrors() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return HasErrors(l.items)
}

// Result is the outcome of a build: success is false iff any diagnostic is an error.
type Result struct {
	Success     bool         `json:"success"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

func NewResult(ds []Diagnostic) Result {
	return Result{Success: !HasErrors(ds), Diagnostics: ds}
}

// Filter returns the diagnostics of the given kind.
func Filter(ds []Diagnostic, kind Kind) []Diagnostic {
	var out []Diagnostic
	for _, d := range ds {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}

// SortByPosition orders diagnostics by file then line, keeping insertion order for ties.
func SortByPosition(ds []Diagnostic) {
	sort.SliceStable(ds, func(i, j int) bool {
		if ds[i].File != ds[j].File {
			return ds[i].File < ds[j].File
		}
		return ds[i].Line < ds[j].Line
	})
}
