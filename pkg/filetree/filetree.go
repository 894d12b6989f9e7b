// Package filetree builds a folder/file tree of a repo in the shape
// editor sidebars expect: folders first, names sorted case-insensitively,
// hidden entries skipped.
package filetree

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Node is one entry in the tree.
type Node struct {
	Name     string  `json:"name"`
	Path     string  `json:"path"`
	Type     string  `json:"type"` // folder or file
	Children []*Node `json:"children,omitempty"`
}

// Build walks root and returns its tree. Entries whose name starts
// with a dot are skipped.
func Build(root string) (*Node, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	return build(abs, info.IsDir())
}

func build(path string, isDir bool) (*Node, error) {
	node := &Node{
		Name: filepath.Base(path),
		Path: path,
		Type: "file",
	}
	if !isDir {
		return node, nil
	}
	node.Type = "folder"
	node.Children = []*Node{}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].IsDir() != entries[j].IsDir() {
			return entries[i].IsDir()
		}
		return strings.ToLower(entries[i].Name()) < strings.ToLower(entries[j].Name())
	})

	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		child, err := build(filepath.Join(path, entry.Name()), entry.IsDir())
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, child)
	}
	return node, nil
}
