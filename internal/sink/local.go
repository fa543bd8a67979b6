package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/i474232898/weather-etl/internal/weather"
)

// LocalObjectWriter mirrors report files into a directory. It stands in for
// object storage when no bucket is configured.
type LocalObjectWriter struct {
	dir string
}

var _ weather.ObjectWriter = (*LocalObjectWriter)(nil)

// NewLocalObjectWriter validates dir and creates it if needed.
func NewLocalObjectWriter(dir string) (*LocalObjectWriter, error) {
	if dir == "" {
		return nil, fmt.Errorf("local object writer: directory must be specified")
	}
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("local object writer: create %s: %w", dir, err)
		}
	case err != nil:
		return nil, fmt.Errorf("local object writer: stat %s: %w", dir, err)
	case !info.IsDir():
		return nil, fmt.Errorf("local object writer: %s is not a directory", dir)
	}
	return &LocalObjectWriter{dir: dir}, nil
}

// Upload copies localPath below the directory and returns a file:// URI.
func (w *LocalObjectWriter) Upload(ctx context.Context, localPath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	src, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer src.Close()

	target := filepath.Join(w.dir, filepath.FromSlash(ObjectName(localPath)))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create directory for %s: %w", target, err)
	}

	dst, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", target, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("copy to %s: %w", target, err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", target, err)
	}

	abs, err := filepath.Abs(target)
	if err != nil {
		return "", err
	}
	return "file://" + filepath.ToSlash(abs), nil
}
