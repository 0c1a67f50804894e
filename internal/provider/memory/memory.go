// Package memory provides a static in-memory directory provider for tests
// and demos.
package memory

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/foldergate/foldergate/internal/tree"
)

// Folder describes one folder of a static hierarchy.
type Folder struct {
	ID       string
	Name     string
	Files    []string
	Children []Folder
}

// Upload is a file received by the provider.
type Upload struct {
	FolderID string
	Name     string
	Data     []byte
}

// Provider serves a fixed folder hierarchy. ListErr and UploadErr, when
// set, are returned by the corresponding calls.
type Provider struct {
	mu        sync.Mutex
	roots     []Folder
	uploads   []Upload
	ListErr   error
	UploadErr error
}

// New creates a provider over roots.
func New(roots ...Folder) *Provider {
	return &Provider{roots: roots}
}

// SetRoots replaces the hierarchy.
func (p *Provider) SetRoots(roots ...Folder) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roots = roots
}

// ListTopLevel returns the root folders.
func (p *Provider) ListTopLevel(ctx context.Context) ([]tree.Stub, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ListErr != nil {
		return nil, p.ListErr
	}
	stubs := make([]tree.Stub, len(p.roots))
	for i, r := range p.roots {
		stubs[i] = tree.Stub{ID: r.ID, Name: r.Name}
	}
	return stubs, nil
}

// BuildSubtree adds the children and files of folderID.
func (p *Provider) BuildSubtree(ctx context.Context, b *tree.Builder, folderID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ListErr != nil {
		return p.ListErr
	}
	f, ok := find(p.roots, folderID)
	if !ok {
		return fmt.Errorf("folder %s not found", folderID)
	}
	add(b, f)
	return nil
}

func add(b *tree.Builder, f Folder) {
	for _, name := range f.Files {
		b.AddFile(f.ID, name)
	}
	for _, c := range f.Children {
		if b.AddFolder(f.ID, c.ID, c.Name) {
			add(b, c)
		}
	}
}

func find(folders []Folder, id string) (Folder, bool) {
	for _, f := range folders {
		if f.ID == id {
			return f, true
		}
		if found, ok := find(f.Children, id); ok {
			return found, true
		}
	}
	return Folder{}, false
}

// Upload records the file and returns a memory:// reference.
func (p *Provider) Upload(ctx context.Context, folderID, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.UploadErr != nil {
		return "", p.UploadErr
	}
	p.uploads = append(p.uploads, Upload{FolderID: folderID, Name: name, Data: data})
	return fmt.Sprintf("memory://%s/%s", folderID, name), nil
}

// Uploads returns the files received so far.
func (p *Provider) Uploads() []Upload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Upload(nil), p.uploads...)
}

// Type returns "memory".
func (p *Provider) Type() string { return "memory" }

// Close is a no-op.
func (p *Provider) Close() error { return nil }
