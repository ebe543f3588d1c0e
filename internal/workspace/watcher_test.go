package workspace

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"
)

func TestNewWatcher_ConfigErrors(t *testing.T) {
	ws := New()
	if _, err := ws.NewWatcher(WatchConfig{}); !errors.Is(err, ErrNoPathsConfigured) {
		t.Errorf("expected ErrNoPathsConfigured, got %v", err)
	}

	dir := t.TempDir()
	file := filepath.Join(dir, "A.kn")
	if err := os.WriteFile(file, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ws.NewWatcher(WatchConfig{Paths: []string{file}}); !errors.Is(err, ErrPathNotDirectory) {
		t.Errorf("expected ErrPathNotDirectory, got %v", err)
	}
	if _, err := ws.NewWatcher(WatchConfig{Paths: []string{dir}, ExcludePatterns: []string{"[unclosed"}}); !errors.Is(err, ErrInvalidPattern) {
		t.Errorf("expected ErrInvalidPattern, got %v", err)
	}
}

func TestWatcher_RefreshesChangedUnit(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "A.kn")
	if err := os.WriteFile(file, []byte("a"), 0o644); err != nil {
		t.Fatal(err)
	}

	ws := New(WithFs(afero.NewOsFs()))
	owner := &testOwner{id: "p1", roots: []string{dir}, src: &countingSource{}}
	u := ws.Units(file, owner)[0]
	if _, err := u.SyntaxTree(context.Background()); err != nil {
		t.Fatal(err)
	}

	w, err := ws.NewWatcher(WatchConfig{Paths: []string{dir}, ExcludePatterns: []string{"**/skip/**"}, Debounce: 20 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changes, err := w.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(file, []byte("a2"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case ch := <-changes:
		if ch.Path != file || len(ch.Invalidated) != 1 || ch.Invalidated[0] != u {
			t.Fatalf("unexpected change %+v", ch)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	res, _ := u.SyntaxTree(context.Background())
	if res.File.Package.Name != "a2" {
		t.Errorf("re-parse saw %q", res.File.Package.Name)
	}

	cancel()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("changes channel not closed after cancel")
		}
	}
}

func TestWatcher_UnknownFilesIgnored(t *testing.T) {
	dir := t.TempDir()
	ws := New(WithFs(afero.NewOsFs()))

	w, err := ws.NewWatcher(WatchConfig{Paths: []string{dir}, Debounce: 10 * time.Millisecond})
	if err != nil {
		t.Fatal(err)
	}
	changes, err := w.Start(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case ch := <-changes:
		t.Fatalf("file without a unit reported %+v", ch)
	case <-time.After(200 * time.Millisecond):
	}

	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	select {
	case _, ok := <-changes:
		if ok {
			t.Error("unexpected change after close")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("changes channel not closed after Close")
	}
}

func TestWatcher_NewDirectoryAddFailureLogged(t *testing.T) {
	var logs bytes.Buffer
	ws := New(WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	dir := t.TempDir()
	w, err := ws.NewWatcher(WatchConfig{Paths: []string{dir}})
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	sub := filepath.Join(dir, "pkg")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	w.handle(fsnotify.Event{Name: sub, Op: fsnotify.Create})
	if !strings.Contains(logs.String(), "watch add failed") {
		t.Errorf("expected add failure to be logged, got %q", logs.String())
	}
}
