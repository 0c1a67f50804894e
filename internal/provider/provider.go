// Package provider defines the directory provider contract: the backend
// that enumerates folders and stores uploaded files.
package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/foldergate/foldergate/internal/logging"
	"github.com/foldergate/foldergate/internal/metrics"
	"github.com/foldergate/foldergate/internal/tree"
)

// ErrUnknownType is returned by New for an unrecognised provider name.
var ErrUnknownType = errors.New("unknown provider type")

// Provider lists a folder hierarchy and accepts uploads into it.
type Provider interface {
	tree.Lister

	// Upload stores the content of r as name inside folderID ("" for the
	// top level) and returns a reference to the stored file.
	Upload(ctx context.Context, folderID, name string, r io.Reader) (string, error)

	// Type returns the provider identifier ("local", "s3", "postgres", "memory").
	Type() string

	// Close releases any resources held by the provider.
	Close() error
}

// Scan builds a fresh forest from p, recording timing and size.
func Scan(ctx context.Context, p Provider) (*tree.Forest, error) {
	start := time.Now()
	forest, err := tree.Scan(ctx, p)
	if err != nil {
		metrics.RecordProviderOperation(p.Type(), "scan", false)
		return nil, err
	}
	metrics.RecordProviderOperation(p.Type(), "scan", true)
	metrics.RecordProviderScan(p.Type(), time.Since(start), forest.Len())
	logging.WithContext(ctx).Debug("scanned folder forest",
		logging.Provider(p.Type()),
		zap.Int("folders", forest.Len()),
		zap.Duration("duration", time.Since(start)))
	return forest, nil
}

// ErrInvalidName is returned for upload names that are not a plain file name.
var ErrInvalidName = errors.New("invalid file name")

// CleanName reduces a client-supplied file name to its base name and
// rejects names that could escape the destination folder.
func CleanName(name string) (string, error) {
	name = strings.TrimSpace(strings.ReplaceAll(name, "\\", "/"))
	base := path.Base(name)
	if base == "." || base == "/" || base == ".." || base == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return base, nil
}

// Upload stores a file through p, recording the outcome. The name is
// reduced to a bare file name first.
func Upload(ctx context.Context, p Provider, folderID, name string, r io.Reader) (string, error) {
	name, err := CleanName(name)
	if err != nil {
		return "", err
	}
	cr := &countingReader{r: r}
	ref, err := p.Upload(ctx, folderID, name, cr)
	metrics.RecordUpload(cr.n, err == nil)
	metrics.RecordProviderOperation(p.Type(), "upload", err == nil)
	if err != nil {
		return "", err
	}
	logging.WithContext(ctx).Info("file uploaded",
		logging.Provider(p.Type()),
		logging.FolderID(folderID),
		zap.String("name", name),
		zap.Int64("size", cr.n))
	return ref, nil
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
