// Package types defines every cross‑package data structure used by the apc CLI.
package types

// FileRecord is one accepted file of a walk.
type FileRecord struct {
	// RelativePath is root-relative with forward slashes.
	RelativePath string
	// Content is the decoded text, or the binary placeholder.
	Content   string
	SizeBytes int64
	IsBinary  bool
}

// ProjectContext is the complete result of one walk: every visible directory in
// pre-order and every accepted file in visit order.
type ProjectContext struct {
	RootPath    string
	Directories []string
	Files       []FileRecord
	Tree        *DirectoryTree
	Summary     CollectionSummary
}

// CollectionSummary captures aggregate information about a walk.
type CollectionSummary struct {
	TotalFiles       int
	TotalDirectories int
	TotalBytes       int64
	SkippedFiles     int
}
