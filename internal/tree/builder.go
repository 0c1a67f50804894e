package tree

import (
	"context"
	"fmt"
)

// Builder accumulates folders into a Forest. Entries with an empty or
// already-seen id are ignored (first wins), which keeps the result acyclic
// no matter what a provider reports.
type Builder struct {
	roots []string
	nodes map[string]*Folder
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{nodes: make(map[string]*Folder)}
}

// AddRoot adds a top-level folder.
func (b *Builder) AddRoot(id, name string) bool {
	if id == "" || b.nodes[id] != nil {
		return false
	}
	b.nodes[id] = &Folder{ID: id, Name: name}
	b.roots = append(b.roots, id)
	return true
}

// AddFolder adds a subfolder under an existing parent.
func (b *Builder) AddFolder(parentID, id, name string) bool {
	parent := b.nodes[parentID]
	if parent == nil || id == "" || b.nodes[id] != nil {
		return false
	}
	b.nodes[id] = &Folder{ID: id, Name: name, ParentID: parentID}
	parent.Children = append(parent.Children, id)
	return true
}

// AddFile records a display-only file name in an existing folder.
func (b *Builder) AddFile(folderID, name string) bool {
	n := b.nodes[folderID]
	if n == nil {
		return false
	}
	n.Files = append(n.Files, name)
	return true
}

// Has reports whether id has been added.
func (b *Builder) Has(id string) bool {
	return b.nodes[id] != nil
}

// Build returns the forest. The builder must not be used afterwards.
func (b *Builder) Build() *Forest {
	f := &Forest{roots: b.roots, nodes: b.nodes}
	b.roots, b.nodes = nil, nil
	return f
}

// Lister enumerates a directory hierarchy into a Builder.
type Lister interface {
	ListTopLevel(ctx context.Context) ([]Stub, error)
	// BuildSubtree adds folderID's descendants and files to b. folderID is
	// already present in b.
	BuildSubtree(ctx context.Context, b *Builder, folderID string) error
}

// Scan builds a fresh forest: the top-level listing, then each root's
// subtree. Any listing failure aborts the scan.
func Scan(ctx context.Context, l Lister) (*Forest, error) {
	stubs, err := l.ListTopLevel(ctx)
	if err != nil {
		return nil, fmt.Errorf("list top-level folders: %w", err)
	}

	b := NewBuilder()
	for _, s := range stubs {
		if !b.AddRoot(s.ID, s.Name) {
			continue
		}
		if err := l.BuildSubtree(ctx, b, s.ID); err != nil {
			return nil, fmt.Errorf("build subtree %s: %w", s.ID, err)
		}
	}
	return b.Build(), nil
}
