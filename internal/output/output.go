// Package output persists emitted artifacts. Writers are safe for concurrent
// use by the build pool; each call writes one distinct artifact.
package output

import (
	"context"
	"errors"
	"path"
	"strings"
)

// ErrRootUnwritable is returned by Prepare when artifacts cannot be written
// under the output root at all.
var ErrRootUnwritable = errors.New("output root is not writable")

// Writer is the sink for one build's artifacts.
type Writer interface {
	// Prepare checks the output root before any unit is emitted.
	Prepare(ctx context.Context) error
	// Write stores data at rel, a slash-separated path under the root.
	// Readers never observe a partially written artifact.
	Write(ctx context.Context, rel string, data []byte) error
}

// ArtifactPath is the slash-separated path of a unit's artifact:
// <subdir>/<qualified name with '.' as '/'>.<ext>.
func ArtifactPath(subdir, qname, ext string) string {
	p := strings.ReplaceAll(qname, ".", "/")
	if ext != "" {
		p += "." + ext
	}
	return path.Join(subdir, p)
}
