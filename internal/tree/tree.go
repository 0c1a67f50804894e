// Package tree holds the folder forest a session navigates.
//
// A Forest is an arena: folders are addressed by id, each keeps an ordered
// list of child ids and its parent id. A Forest never changes after Build;
// a refresh produces a new one.
package tree

// Folder is one node of the forest. Slices are shared with the forest and
// must not be modified by callers.
type Folder struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	ParentID string   `json:"parent_id,omitempty"`
	Children []string `json:"children,omitempty"`
	Files    []string `json:"files,omitempty"`
}

// IsRoot reports whether f has no parent.
func (f Folder) IsRoot() bool {
	return f.ParentID == ""
}

// Stub is a folder reference as returned by a directory listing.
type Stub struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Forest is an immutable set of folder trees. The zero value and nil are
// both valid empty forests.
type Forest struct {
	roots []string
	nodes map[string]*Folder
}

// Len returns the number of folders in the forest.
func (f *Forest) Len() int {
	if f == nil {
		return 0
	}
	return len(f.nodes)
}

// FindByID looks a folder up by id anywhere in the forest.
func (f *Forest) FindByID(id string) (Folder, bool) {
	if f == nil {
		return Folder{}, false
	}
	n, ok := f.nodes[id]
	if !ok {
		return Folder{}, false
	}
	return *n, true
}

// Roots returns the top-level folders in provider order.
func (f *Forest) Roots() []Folder {
	if f == nil {
		return nil
	}
	return f.collect(f.roots)
}

// Children returns the direct subfolders of id in provider order.
func (f *Forest) Children(id string) []Folder {
	if f == nil {
		return nil
	}
	n, ok := f.nodes[id]
	if !ok {
		return nil
	}
	return f.collect(n.Children)
}

// Parent returns the folder containing id. Roots have no parent.
func (f *Forest) Parent(id string) (Folder, bool) {
	n, ok := f.FindByID(id)
	if !ok || n.IsRoot() {
		return Folder{}, false
	}
	return f.FindByID(n.ParentID)
}

// Ancestors returns the chain from the forest root down to id, inclusive.
func (f *Forest) Ancestors(id string) []Folder {
	var chain []Folder
	for cur, ok := f.FindByID(id); ok; cur, ok = f.FindByID(cur.ParentID) {
		chain = append(chain, cur)
	}
	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// IsDescendantOrSelf reports whether id is rootID or lies in its subtree.
// It walks the parent index upward from id, so the cost is O(depth).
func (f *Forest) IsDescendantOrSelf(rootID, id string) bool {
	if f == nil || rootID == "" {
		return false
	}
	for cur, ok := f.nodes[id]; ok; cur, ok = f.nodes[cur.ParentID] {
		if cur.ID == rootID {
			return true
		}
	}
	return false
}

// Walk visits every folder depth-first in pre-order, roots in provider
// order. Returning false from fn stops the walk.
func (f *Forest) Walk(fn func(Folder) bool) {
	if f == nil {
		return
	}
	for _, id := range f.roots {
		if !f.walk(id, fn) {
			return
		}
	}
}

func (f *Forest) walk(id string, fn func(Folder) bool) bool {
	n, ok := f.nodes[id]
	if !ok {
		return true
	}
	if !fn(*n) {
		return false
	}
	for _, child := range n.Children {
		if !f.walk(child, fn) {
			return false
		}
	}
	return true
}

func (f *Forest) collect(ids []string) []Folder {
	out := make([]Folder, 0, len(ids))
	for _, id := range ids {
		if n, ok := f.nodes[id]; ok {
			out = append(out, *n)
		}
	}
	return out
}
