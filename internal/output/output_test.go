package output

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"
)

func TestArtifactPath(t *testing.T) {
	tests := []struct{ subdir, qname, ext, want string }{
		{"js", "com.example.Widget", "js", "js/com/example/Widget.js"},
		{"ts", "Top", "ts", "ts/Top.ts"},
		{"", "a.b.C", "as", "a/b/C.as"},
		{"classes", "a.B", "", "classes/a/B"},
	}
	for _, tt := range tests {
		if got := ArtifactPath(tt.subdir, tt.qname, tt.ext); got != tt.want {
			t.Errorf("ArtifactPath(%q, %q, %q) = %q, want %q", tt.subdir, tt.qname, tt.ext, got, tt.want)
		}
	}
}

func listFiles(t *testing.T, fs afero.Fs, root string) []string {
	t.Helper()
	var out []string
	err := afero.Walk(fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			out = append(out, filepath.ToSlash(p))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestFSWriterWrite(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewFSWriter(fs, "/out")
	ctx := context.Background()
	if err := w.Prepare(ctx); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(ctx, "js/com/example/Widget.js", []byte("one")); err != nil {
		t.Fatal(err)
	}
	if err := w.Write(ctx, "js/com/example/Widget.js", []byte("two")); err != nil {
		t.Fatal(err)
	}

	data, err := afero.ReadFile(fs, "/out/js/com/example/Widget.js")
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "two" {
		t.Errorf("content = %q, want overwritten", data)
	}
	files := listFiles(t, fs, "/out")
	if len(files) != 1 {
		t.Errorf("expected only the artifact, found %v", files)
	}
}

func TestFSWriterConcurrentWrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewFSWriter(fs, "/out")
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rel := ArtifactPath("js", "p.C"+string(rune('a'+i)), "js")
			errs <- w.Write(ctx, rel, []byte(rel))
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	if n := len(listFiles(t, fs, "/out")); n != 20 {
		t.Errorf("wrote %d files, want 20", n)
	}
}

func TestFSWriterUnwritableRoot(t *testing.T) {
	w := NewFSWriter(afero.NewReadOnlyFs(afero.NewMemMapFs()), "/out")
	err := w.Prepare(context.Background())
	if !errors.Is(err, ErrRootUnwritable) {
		t.Fatalf("Prepare() = %v, want ErrRootUnwritable", err)
	}
}

type failingRenameFs struct {
	afero.Fs
	fail string
}

func (f failingRenameFs) Rename(oldname, newname string) error {
	if strings.HasSuffix(newname, f.fail) {
		return errors.New("disk full")
	}
	return f.Fs.Rename(oldname, newname)
}

func TestFSWriterFailedRenameLeavesNoTempFile(t *testing.T) {
	mem := afero.NewMemMapFs()
	w := NewFSWriter(failingRenameFs{Fs: mem, fail: "Bad.js"}, "/out")
	ctx := context.Background()

	if err := w.Write(ctx, "js/p/Bad.js", []byte("x")); err == nil {
		t.Fatal("expected rename failure")
	}
	if err := w.Write(ctx, "js/p/Good.js", []byte("y")); err != nil {
		t.Fatal(err)
	}
	files := listFiles(t, mem, "/out")
	if len(files) != 1 || files[0] != "/out/js/p/Good.js" {
		t.Errorf("files = %v, want only Good.js", files)
	}
}

func TestFSWriterCancelled(t *testing.T) {
	fs := afero.NewMemMapFs()
	w := NewFSWriter(fs, "/out")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := w.Write(ctx, "js/p/A.js", []byte("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("Write() = %v, want context.Canceled", err)
	}
	if exists, _ := afero.DirExists(fs, "/out/js"); exists {
		t.Error("cancelled write should not create directories")
	}
}

func TestNewObjectWriterValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  ObjectConfig
	}{
		{"no endpoint", ObjectConfig{AccessKey: "a", SecretKey: "s", Bucket: "b"}},
		{"no credentials", ObjectConfig{Endpoint: "localhost:9000", Bucket: "b"}},
		{"no bucket", ObjectConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewObjectWriter(tt.cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestObjectWriterKey(t *testing.T) {
	w, err := NewObjectWriter(ObjectConfig{Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "s", Bucket: "artifacts", Prefix: "/builds/42/"})
	if err != nil {
		t.Fatal(err)
	}
	if got := w.Key("js/p/A.js"); got != "builds/42/js/p/A.js" {
		t.Errorf("Key() = %q", got)
	}
	if got := w.Key("../escape/A.js"); got != "builds/42/escape/A.js" {
		t.Errorf("Key() = %q, want path kept under prefix", got)
	}
}
