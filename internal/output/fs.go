package output

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// FSWriter writes artifacts to a file tree. Each artifact goes to a temp
// file in its destination directory and is renamed into place.
type FSWriter struct {
	fs   afero.Fs
	root string
	perm os.FileMode
}

func NewFSWriter(fs afero.Fs, root string) *FSWriter {
	return &FSWriter{fs: fs, root: filepath.Clean(root), perm: 0o644}
}

func (w *FSWriter) Root() string { return w.root }

func (w *FSWriter) Prepare(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := w.fs.MkdirAll(w.root, 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRootUnwritable, w.root, err)
	}
	probe, err := afero.TempFile(w.fs, w.root, ".kiln-probe-*")
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRootUnwritable, w.root, err)
	}
	probe.Close()
	if err := w.fs.Remove(probe.Name()); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRootUnwritable, w.root, err)
	}
	return nil
}

func (w *FSWriter) Write(ctx context.Context, rel string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst := filepath.Join(w.root, filepath.FromSlash(rel))
	dir := filepath.Dir(dst)
	if err := w.fs.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := afero.TempFile(w.fs, dir, "."+filepath.Base(dst)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", dst, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		w.fs.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		w.fs.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", dst, err)
	}
	if err := w.fs.Chmod(tmpPath, w.perm); err != nil {
		w.fs.Remove(tmpPath)
		return fmt.Errorf("chmod %s: %w", dst, err)
	}
	if err := ctx.Err(); err != nil {
		w.fs.Remove(tmpPath)
		return err
	}
	if err := w.fs.Rename(tmpPath, dst); err != nil {
		w.fs.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", dst, err)
	}
	return nil
}
