package types

import "github.com/temirov/apc/internal/utils"

// RootDirectoryPath is the relative path of the walk root.
const RootDirectoryPath = ""

// DirectoryRecord is one directory of a DirectoryTree with its children in insertion order.
type DirectoryRecord struct {
	RelativePath string
	Children     []string
	childSet     map[string]struct{}
}

// DirectoryTree accumulates accepted paths into directory records keyed by
// root-relative path. The root record exists from construction.
type DirectoryTree struct {
	records map[string]*DirectoryRecord
}

// NewDirectoryTree returns a tree holding only the root directory.
func NewDirectoryTree() *DirectoryTree {
	tree := &DirectoryTree{records: make(map[string]*DirectoryRecord)}
	tree.records[RootDirectoryPath] = newDirectoryRecord(RootDirectoryPath)
	return tree
}

func newDirectoryRecord(relativePath string) *DirectoryRecord {
	return &DirectoryRecord{RelativePath: relativePath, childSet: make(map[string]struct{})}
}

// AddDirectory registers relativePath as a directory and links it under its parent.
// Missing ancestors are registered first.
func (tree *DirectoryTree) AddDirectory(relativePath string) {
	if relativePath == RootDirectoryPath {
		return
	}
	if _, exists := tree.records[relativePath]; !exists {
		tree.records[relativePath] = newDirectoryRecord(relativePath)
	}
	tree.linkToParent(relativePath)
}

// AddFile links relativePath under its parent directory.
func (tree *DirectoryTree) AddFile(relativePath string) {
	if relativePath == RootDirectoryPath {
		return
	}
	tree.linkToParent(relativePath)
}

// IsDirectory reports whether relativePath was registered as a directory.
func (tree *DirectoryTree) IsDirectory(relativePath string) bool {
	_, exists := tree.records[relativePath]
	return exists
}

// Children returns the children of relativePath in insertion order.
func (tree *DirectoryTree) Children(relativePath string) []string {
	record := tree.records[relativePath]
	if record == nil {
		return nil
	}
	return record.Children
}

func (tree *DirectoryTree) linkToParent(relativePath string) {
	parentPath := utils.ParentRelativePath(relativePath)
	parent, exists := tree.records[parentPath]
	if !exists {
		tree.AddDirectory(parentPath)
		parent = tree.records[parentPath]
	}
	if _, linked := parent.childSet[relativePath]; linked {
		return
	}
	parent.childSet[relativePath] = struct{}{}
	parent.Children = append(parent.Children, relativePath)
}
