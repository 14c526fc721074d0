// Package output renders a collected project context as text.
package output

import (
	"path"
	"sort"
	"strings"

	"github.com/temirov/apc/internal/types"
)

const (
	treeRootLine        = "./\n"
	directoryLineSuffix = "/"

	treeBranchConnector = "├── "
	treeLastConnector   = "└── "
	treeBranchPadding   = "│   "
	treeLastPadding     = "    "

	structureHeader   = "Directory Structure:\n"
	contentsHeader    = "\nFile Contents:"
	fileHeaderPrefix  = "\n--- "
	fileHeaderSuffix  = " ---\n"
	contentTerminator = "\n"
)

// RenderProjectContext returns the complete text for projectContext. The directory
// structure always comes first; file contents follow unless structureOnly is set.
func RenderProjectContext(projectContext *types.ProjectContext, structureOnly bool) string {
	var builder strings.Builder
	builder.WriteString(structureHeader)
	builder.WriteString(RenderTree(projectContext.Tree))
	if structureOnly {
		return builder.String()
	}
	builder.WriteString(contentsHeader)
	builder.WriteString(RenderContents(projectContext.Files))
	return builder.String()
}

// RenderTree renders tree as a box-drawing listing beneath "./". Within each directory,
// subdirectories come before files and each group is sorted by relative path, so the
// result does not depend on the order in which paths were added.
func RenderTree(tree *types.DirectoryTree) string {
	var builder strings.Builder
	builder.WriteString(treeRootLine)
	if tree == nil {
		return builder.String()
	}
	renderBranch(&builder, tree, types.RootDirectoryPath, "")
	return builder.String()
}

func renderBranch(builder *strings.Builder, tree *types.DirectoryTree, directory string, prefix string) {
	var directories, files []string
	for _, child := range tree.Children(directory) {
		if tree.IsDirectory(child) {
			directories = append(directories, child)
		} else {
			files = append(files, child)
		}
	}
	sort.Strings(directories)
	sort.Strings(files)

	ordered := append(directories, files...)
	for index, child := range ordered {
		isLast := index == len(ordered)-1
		connector, childPrefix := treeBranchConnector, prefix+treeBranchPadding
		if isLast {
			connector, childPrefix = treeLastConnector, prefix+treeLastPadding
		}
		builder.WriteString(prefix)
		builder.WriteString(connector)
		builder.WriteString(path.Base(child))
		if index < len(directories) {
			builder.WriteString(directoryLineSuffix)
			builder.WriteString("\n")
			renderBranch(builder, tree, child, childPrefix)
			continue
		}
		builder.WriteString("\n")
	}
}

// RenderContents concatenates files sorted by relative path, each under a
// "--- path ---" header and terminated by exactly one newline.
func RenderContents(files []types.FileRecord) string {
	sortedFiles := make([]types.FileRecord, len(files))
	copy(sortedFiles, files)
	sort.SliceStable(sortedFiles, func(left, right int) bool {
		return sortedFiles[left].RelativePath < sortedFiles[right].RelativePath
	})

	var builder strings.Builder
	for _, file := range sortedFiles {
		builder.WriteString(fileHeaderPrefix)
		builder.WriteString(file.RelativePath)
		builder.WriteString(fileHeaderSuffix)
		builder.WriteString(file.Content)
		if !strings.HasSuffix(file.Content, contentTerminator) {
			builder.WriteString(contentTerminator)
		}
	}
	return builder.String()
}
