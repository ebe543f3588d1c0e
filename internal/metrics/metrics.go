// Package metrics summarizes one build for humans and for --json output.
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/efebarandurmaz/kiln/internal/diag"
)

// BuildReport collects statistics for one build invocation.
type BuildReport struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at,omitempty"`
	Duration   time.Duration `json:"duration_ms,omitempty"`
	Backend    string        `json:"backend"`
	Root       string        `json:"root"`
	Success    bool          `json:"success"`

	Plan      PlanMetrics   `json:"plan"`
	Output    OutputMetrics `json:"output"`
	BodyCache CacheMetrics  `json:"body_cache"`
	Units     []UnitMetrics `json:"units"`

	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
}

type PlanMetrics struct {
	Reachable int `json:"reachable"`
	Emittable int `json:"emittable"`
	Libraries int `json:"libraries"`
	Resources int `json:"resources"`
}

type OutputMetrics struct {
	Root           string `json:"root"`
	FilesGenerated int    `json:"files_generated"`
	FilesSkipped   int    `json:"files_skipped"`
	TotalBytes     int    `json:"total_bytes"`
}

type CacheMetrics struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// UnitMetrics records one emitted (or skipped) unit.
type UnitMetrics struct {
	Name        string        `json:"name"`
	Path        string        `json:"path"`
	Artifact    string        `json:"artifact,omitempty"`
	Bytes       int           `json:"bytes"`
	Duration    time.Duration `json:"duration_ms"`
	Fingerprint string        `json:"fingerprint,omitempty"`
	Skipped     bool          `json:"skipped,omitempty"`
}

func New(backend, root string) *BuildReport {
	return &BuildReport{StartedAt: time.Now(), Backend: backend, Root: root}
}

// AddUnit records a unit; units are reported in the order they are added.
func (r *BuildReport) AddUnit(u UnitMetrics) {
	r.Units = append(r.Units, u)
	if u.Skipped {
		r.Output.FilesSkipped++
		return
	}
	r.Output.FilesGenerated++
	r.Output.TotalBytes += u.Bytes
}

// Finish stamps the end time and tallies the build's diagnostics.
func (r *BuildReport) Finish(res diag.Result) {
	r.FinishedAt = time.Now()
	r.Duration = r.FinishedAt.Sub(r.StartedAt)
	r.Success = res.Success
	r.Errors, r.Warnings = diag.Count(res.Diagnostics)
}

// PrintSummary writes a human-readable summary.
func (r *BuildReport) PrintSummary(w io.Writer) {
	status := "ok"
	if !r.Success {
		status = "FAILED"
	}
	fmt.Fprintf(w, "kiln build %s (%s) %s in %s\n", r.Root, r.Backend, status, r.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  reachable:  %d units (%d emittable, %d library, %d resource)\n",
		r.Plan.Reachable, r.Plan.Emittable, r.Plan.Libraries, r.Plan.Resources)
	fmt.Fprintf(w, "  output:     %d files, %s -> %s\n", r.Output.FilesGenerated, formatBytes(r.Output.TotalBytes), r.Output.Root)
	if r.Output.FilesSkipped > 0 {
		fmt.Fprintf(w, "  skipped:    %d units\n", r.Output.FilesSkipped)
	}
	if total := r.BodyCache.Hits + r.BodyCache.Misses; total > 0 {
		fmt.Fprintf(w, "  bodies:     %d cached, %d/%d hits\n", r.BodyCache.Entries, r.BodyCache.Hits, total)
	}
	fmt.Fprintf(w, "  diagnostics: %d errors, %d warnings\n", r.Errors, r.Warnings)
}

// JSON returns the report as indented JSON.
func (r *BuildReport) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

func formatBytes(b int) string {
	switch {
	case b >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(1<<20))
	case b >= 1<<10:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(1<<10))
	}
	return fmt.Sprintf("%d B", b)
}
