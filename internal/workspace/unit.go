package workspace

import (
	"context"
	"errors"
	"io/fs"
	"sync"

	"github.com/spf13/afero"

	"github.com/efebarandurmaz/kiln/internal/ast"
	"github.com/efebarandurmaz/kiln/internal/diag"
)

// SyntaxResult is the memoized outcome of parsing one content version.
// File is never nil; on failure it is empty or partial and Diagnostics
// carries the errors.
type SyntaxResult struct {
	File        *ast.File
	Diagnostics []diag.Diagnostic
	Version     int64
	Fingerprint string
}

func (r *SyntaxResult) HasErrors() bool {
	return diag.HasErrors(r.Diagnostics)
}

// syntaxRequest resolves once; every waiter gets the same result.
type syntaxRequest struct {
	once   sync.Once
	done   chan struct{}
	result *SyntaxResult
}

func newSyntaxRequest() *syntaxRequest {
	return &syntaxRequest{done: make(chan struct{})}
}

func (r *syntaxRequest) get(ctx context.Context, compute func() *SyntaxResult) (*SyntaxResult, error) {
	r.once.Do(func() {
		go func() {
			r.result = compute()
			close(r.done)
		}()
	})
	select {
	case <-r.done:
		return r.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// resolved returns the result if the request already finished.
func (r *syntaxRequest) resolved() (*SyntaxResult, bool) {
	select {
	case <-r.done:
		return r.result, true
	default:
		return nil, false
	}
}

// Unit is a compilation unit: one file within one project.
type Unit struct {
	ws    *Workspace
	owner string
	path  string
	spec  UnitSpec

	mu          sync.Mutex
	version     int64
	req         *syntaxRequest
	deps        []*Unit
	depDiags    []diag.Diagnostic
	depsVersion int64
	depsKnown   bool
}

func newUnit(ws *Workspace, owner, path string, spec UnitSpec) *Unit {
	names := make([]string, len(spec.QualifiedNames))
	copy(names, spec.QualifiedNames)
	spec.QualifiedNames = names
	return &Unit{ws: ws, owner: owner, path: path, spec: spec, req: newSyntaxRequest()}
}

func (u *Unit) Path() string   { return u.path }
func (u *Unit) Owner() string  { return u.owner }
func (u *Unit) Kind() UnitKind { return u.spec.Kind }
func (u *Unit) Library() bool  { return u.spec.Library }

// QualifiedNames lists the names the unit defines.
func (u *Unit) QualifiedNames() []string {
	out := make([]string, len(u.spec.QualifiedNames))
	copy(out, u.spec.QualifiedNames)
	return out
}

// Name is the primary qualified name, used for the artifact path.
func (u *Unit) Name() string {
	if len(u.spec.QualifiedNames) == 0 {
		return ""
	}
	return u.spec.QualifiedNames[0]
}

// Version is the current content version; it grows on every invalidation.
func (u *Unit) Version() int64 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.version
}

func (u *Unit) String() string { return u.path }

// SyntaxTree returns the unit's tree, parsing it on first use. Concurrent
// callers share one parse. The error is non-nil only when ctx ends first;
// parse failures are reported through the result's diagnostics.
func (u *Unit) SyntaxTree(ctx context.Context) (*SyntaxResult, error) {
	u.mu.Lock()
	req, version := u.req, u.version
	u.mu.Unlock()
	return req.get(ctx, func() *SyntaxResult { return u.parse(version) })
}

// Dependencies returns the recorded dependency set if it matches the
// current content version.
func (u *Unit) Dependencies() ([]*Unit, []diag.Diagnostic, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.depsKnown || u.depsVersion != u.version {
		return nil, nil, false
	}
	return u.deps, u.depDiags, true
}

func (u *Unit) parse(version int64) *SyntaxResult {
	res := &SyntaxResult{Version: version}
	content, err := afero.ReadFile(u.ws.fs, u.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			res.Diagnostics = []diag.Diagnostic{diag.Errorf(diag.KindMissingFile, u.path, 0, "%s does not exist.", u.path)}
		} else {
			res.Diagnostics = []diag.Diagnostic{diag.Errorf(diag.KindIO, u.path, 0, "read: %v", err)}
		}
		res.File = &ast.File{Path: u.path}
		return res
	}
	res.Fingerprint = hashBytes(content)
	res.File, res.Diagnostics = u.spec.Source.Parse(u.path, content)
	if res.File == nil {
		res.File = &ast.File{Path: u.path}
	}
	u.ws.parses.Add(1)
	if diag.HasErrors(res.Diagnostics) {
		u.ws.logger.Debug("unit parsed with errors", "unit", u.path, "version", version, "diagnostics", len(res.Diagnostics))
	}
	return res
}

// hasUnresolved reports whether the recorded dependency set of the current
// version names something that could not be resolved.
func (u *Unit) hasUnresolved() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	if !u.depsKnown || u.depsVersion != u.version {
		return false
	}
	for _, d := range u.depDiags {
		if d.Kind == diag.KindUnresolved {
			return true
		}
	}
	return false
}

func (u *Unit) invalidate() {
	u.mu.Lock()
	u.version++
	u.req = newSyntaxRequest()
	u.mu.Unlock()
}

// lastFingerprint is the content hash of the most recent finished parse.
func (u *Unit) lastFingerprint() string {
	u.mu.Lock()
	req := u.req
	u.mu.Unlock()
	if res, ok := req.resolved(); ok {
		return res.Fingerprint
	}
	return ""
}
