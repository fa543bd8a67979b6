package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/i474232898/weather-etl/internal/weather"
)

// GCSWriter uploads report files to a Cloud Storage bucket, keeping the
// local relative path as object name.
type GCSWriter struct {
	client     *storage.Client
	bucketName string
}

var _ weather.ObjectWriter = (*GCSWriter)(nil)

// NewGCSWriter creates a client for bucketName. credsFile may be empty to use
// application default credentials.
func NewGCSWriter(ctx context.Context, bucketName, credsFile string) (*GCSWriter, error) {
	var opts []option.ClientOption
	if credsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}

	return &GCSWriter{
		client:     client,
		bucketName: bucketName,
	}, nil
}

// Upload copies localPath to gs://<bucket>/<localPath>.
func (w *GCSWriter) Upload(ctx context.Context, localPath string) (string, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", localPath, err)
	}
	defer f.Close()

	name := ObjectName(localPath)
	writer := w.client.Bucket(w.bucketName).Object(name).NewWriter(ctx)
	writer.ContentType = "application/json"

	if _, err := io.Copy(writer, f); err != nil {
		writer.Close()
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	// The object is only committed on Close.
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("finalize %s: %w", name, err)
	}
	return GCSURI(w.bucketName, name), nil
}

func (w *GCSWriter) Close() error {
	return w.client.Close()
}

// ObjectName turns a local path into a slash separated object name. Leading
// "/" and ".." segments are dropped so the name stays under its root.
func ObjectName(localPath string) string {
	name := path.Clean(filepath.ToSlash(localPath))
	name = strings.TrimLeft(strings.TrimPrefix(name, "./"), "/")
	for name == ".." || strings.HasPrefix(name, "../") {
		name = strings.TrimPrefix(strings.TrimPrefix(name, ".."), "/")
	}
	return name
}

// GCSURI returns gs://bucket/name.
func GCSURI(bucket, name string) string {
	return fmt.Sprintf("gs://%s/%s", bucket, name)
}
