package tree

import "strings"

// Resolve maps user input to a folder. It tries, in order:
//
//  1. an exact id match anywhere in the forest;
//  2. if the input contains '/', a path match (see FindByPath);
//  3. a case-insensitive name match, first in depth-first order.
func (f *Forest) Resolve(raw string) (Folder, bool) {
	input := strings.TrimSpace(raw)
	if input == "" {
		return Folder{}, false
	}
	if n, ok := f.FindByID(input); ok {
		return n, true
	}
	if strings.Contains(input, "/") {
		if n, ok := f.FindByPath(input); ok {
			return n, true
		}
	}
	return f.FindByName(input)
}

// FindByName returns the first folder whose name equals name, ignoring case.
func (f *Forest) FindByName(name string) (Folder, bool) {
	var found Folder
	var ok bool
	f.Walk(func(n Folder) bool {
		if strings.EqualFold(n.Name, name) {
			found, ok = n, true
			return false
		}
		return true
	})
	return found, ok
}

// FindByPath resolves a slash-separated chain of names. Segments are
// trimmed and empty ones dropped; names compare case-insensitively.
//
// The first segment may anchor on any folder, not only a root: anchors at
// the forest roots are tried first, then every folder in depth-first
// order. Each following segment must name a direct child of the previous
// match. So "b/c" matches a/b/c when no root is named "b", and short
// common names can match deep in an unrelated branch.
func (f *Forest) FindByPath(path string) (Folder, bool) {
	segs := splitPath(path)
	if len(segs) == 0 || f == nil {
		return Folder{}, false
	}

	for _, id := range f.roots {
		if n, ok := f.matchFrom(id, segs); ok {
			return n, true
		}
	}

	var found Folder
	var ok bool
	f.Walk(func(n Folder) bool {
		found, ok = f.matchFrom(n.ID, segs)
		return !ok
	})
	return found, ok
}

// matchFrom matches segs starting at id, backtracking over siblings that
// share a name.
func (f *Forest) matchFrom(id string, segs []string) (Folder, bool) {
	n, ok := f.nodes[id]
	if !ok || !strings.EqualFold(n.Name, segs[0]) {
		return Folder{}, false
	}
	if len(segs) == 1 {
		return *n, true
	}
	for _, child := range n.Children {
		if m, ok := f.matchFrom(child, segs[1:]); ok {
			return m, true
		}
	}
	return Folder{}, false
}

func splitPath(path string) []string {
	var segs []string
	for _, s := range strings.Split(path, "/") {
		if s = strings.TrimSpace(s); s != "" {
			segs = append(segs, s)
		}
	}
	return segs
}
