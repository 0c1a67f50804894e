// Package local provides a directory provider over a local directory.
//
// Folder ids are slash-separated paths relative to the root ("Reports",
// "Reports/2024").
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/foldergate/foldergate/internal/tree"
)

// Config holds local provider settings.
type Config struct {
	RootPath   string `json:"root_path"`
	CreateDirs bool   `json:"create_dirs"`
}

// Provider lists and stores files under a root directory.
type Provider struct {
	rootPath string
}

// New creates a local provider.
func New(cfg Config) (*Provider, error) {
	if cfg.RootPath == "" {
		return nil, fmt.Errorf("root_path is required")
	}

	info, err := os.Stat(cfg.RootPath)
	if err != nil {
		if os.IsNotExist(err) && cfg.CreateDirs {
			if mkErr := os.MkdirAll(cfg.RootPath, 0755); mkErr != nil {
				return nil, fmt.Errorf("create root path %s: %w", cfg.RootPath, mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat root path %s: %w", cfg.RootPath, err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("root path %s is not a directory", cfg.RootPath)
	}

	abs, err := filepath.Abs(cfg.RootPath)
	if err != nil {
		return nil, fmt.Errorf("resolve root path %s: %w", cfg.RootPath, err)
	}
	return &Provider{rootPath: abs}, nil
}

// fullPath maps a folder id to a filesystem path, refusing ids that leave
// the root.
func (p *Provider) fullPath(id string) (string, error) {
	clean := path.Clean("/" + id)
	if clean != "/"+strings.Trim(id, "/") && id != "" {
		return "", fmt.Errorf("invalid folder id %q", id)
	}
	return filepath.Join(p.rootPath, filepath.FromSlash(clean)), nil
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

// ListTopLevel returns the directories directly under the root.
func (p *Provider) ListTopLevel(ctx context.Context) ([]tree.Stub, error) {
	entries, err := os.ReadDir(p.rootPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", p.rootPath, err)
	}
	var stubs []tree.Stub
	for _, e := range entries {
		if e.IsDir() && !hidden(e.Name()) {
			stubs = append(stubs, tree.Stub{ID: e.Name(), Name: e.Name()})
		}
	}
	return stubs, nil
}

// BuildSubtree walks folderID recursively, adding subdirectories as
// folders and regular files as display names.
func (p *Provider) BuildSubtree(ctx context.Context, b *tree.Builder, folderID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := p.fullPath(folderID)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %s: %w", folderID, err)
	}

	for _, e := range entries {
		if hidden(e.Name()) {
			continue
		}
		if e.IsDir() {
			childID := folderID + "/" + e.Name()
			if b.AddFolder(folderID, childID, e.Name()) {
				if err := p.BuildSubtree(ctx, b, childID); err != nil {
					return err
				}
			}
			continue
		}
		if e.Type().IsRegular() {
			b.AddFile(folderID, e.Name())
		}
	}
	return nil
}

// Upload writes r to name inside folderID atomically and returns a file://
// reference.
func (p *Provider) Upload(ctx context.Context, folderID, name string, r io.Reader) (string, error) {
	dir, err := p.fullPath(folderID)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("stat folder %s: %w", folderID, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("folder %s is not a directory", folderID)
	}
	dest := filepath.Join(dir, name)

	// Write to temp file then rename for atomicity
	tmp, err := os.CreateTemp(dir, ".foldergate-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("close temp for %s: %w", name, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("rename temp to %s: %w", name, err)
	}

	return "file://" + filepath.ToSlash(dest), nil
}

// Type returns "local".
func (p *Provider) Type() string { return "local" }

// Close is a no-op.
func (p *Provider) Close() error { return nil }
