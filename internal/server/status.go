package server

import (
	"sync"
	"time"
)

// BuildSummary describes one finished build.
type BuildSummary struct {
	Sequence  int           `json:"sequence"`
	Root      string        `json:"root"`
	Backend   string        `json:"backend"`
	Success   bool          `json:"success"`
	Artifacts int           `json:"artifacts"`
	Errors    int           `json:"errors"`
	Warnings  int           `json:"warnings"`
	Duration  time.Duration `json:"duration_ns"`
	Finished  time.Time     `json:"finished"`

	// Changed lists the files whose edit triggered the build, empty for
	// the initial build.
	Changed []string `json:"changed,omitempty"`
}

// BuildStatus holds the most recent build summary. It is safe for
// concurrent use.
type BuildStatus struct {
	mu    sync.RWMutex
	last  BuildSummary
	count int
}

func NewBuildStatus() *BuildStatus { return &BuildStatus{} }

// Record stores s as the latest build and stamps its sequence number.
func (b *BuildStatus) Record(s BuildSummary) BuildSummary {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.count++
	s.Sequence = b.count
	if s.Finished.IsZero() {
		s.Finished = time.Now().UTC()
	}
	b.last = s
	return s
}

// Last returns the latest summary; ok is false before the first build.
func (b *BuildStatus) Last() (BuildSummary, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.last, b.count > 0
}
