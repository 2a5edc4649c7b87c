package filter

import (
	"fmt"
	"path"
	"sort"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// Apply produces a tree equal to root with every path matching the spec
// removed, and returns the resulting tree hash. Unmodified subtrees keep
// their original hashes; only trees along a modified path are rewritten to
// the store. Blobs are never copied, so the filtered tree shares all file
// content with the source tree.
func Apply(store storer.EncodedObjectStorer, root *object.Tree, spec *Spec) (plumbing.Hash, error) {
	if spec.Empty() {
		return root.Hash, nil
	}

	m := newMatcher(spec)
	hash, changed, err := filterTree(store, root, "", m)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if !changed {
		return root.Hash, nil
	}
	if hash.IsZero() {
		// Everything was filtered away; the result is the empty tree.
		return storeTree(store, &object.Tree{})
	}
	return hash, nil
}

// filterTree walks one tree level. It returns the hash of the filtered tree,
// or the zero hash when every entry was removed, and whether anything under
// this level changed.
func filterTree(store storer.EncodedObjectStorer, tree *object.Tree, prefix string, m *matcher) (plumbing.Hash, bool, error) {
	var entries []object.TreeEntry
	changed := false

	for _, entry := range tree.Entries {
		full := path.Join(prefix, entry.Name)
		isDir := entry.Mode == filemode.Dir

		if m.excluded(full, isDir) {
			changed = true
			continue
		}

		if isDir {
			sub, err := object.GetTree(store, entry.Hash)
			if err != nil {
				return plumbing.ZeroHash, false, fmt.Errorf("failed to read tree %s at %q: %w", entry.Hash, full, err)
			}
			subHash, subChanged, err := filterTree(store, sub, full, m)
			if err != nil {
				return plumbing.ZeroHash, false, err
			}
			if subChanged {
				changed = true
				if subHash.IsZero() {
					// Subtree emptied out; git trees cannot be empty.
					continue
				}
				entry.Hash = subHash
			}
		}

		entries = append(entries, entry)
	}

	if !changed {
		return tree.Hash, false, nil
	}
	if len(entries) == 0 {
		return plumbing.ZeroHash, true, nil
	}

	// Git sorts tree entries as though directories have '/' appended.
	sort.Slice(entries, func(i, j int) bool {
		return entrySortKey(&entries[i]) < entrySortKey(&entries[j])
	})

	hash, err := storeTree(store, &object.Tree{Entries: entries})
	if err != nil {
		return plumbing.ZeroHash, false, err
	}
	return hash, true, nil
}

func entrySortKey(e *object.TreeEntry) string {
	if e.Mode == filemode.Dir {
		return e.Name + "/"
	}
	return e.Name
}

// storeTree writes a tree object to the store and returns its hash.
func storeTree(store storer.EncodedObjectStorer, tree *object.Tree) (plumbing.Hash, error) {
	eo := store.NewEncodedObject()
	if err := tree.Encode(eo); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to encode tree: %w", err)
	}
	hash, err := store.SetEncodedObject(eo)
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("failed to store tree: %w", err)
	}
	return hash, nil
}
