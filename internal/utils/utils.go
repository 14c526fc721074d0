// Package utils contains general helper functions used across apc.
package utils

import (
	"path"
	"path/filepath"
	"strings"
)

// Well-known file and directory names used across the project.
const (
	// RuleFileName is the name of the per-directory apc ignore-rule file.
	RuleFileName = ".apcignore"
	// GitIgnoreFileName is the name of the Git ignore file.
	GitIgnoreFileName = ".gitignore"
	// IgnoreFileName is the name of the tool-neutral ignore file shared with search tools.
	IgnoreFileName = ".ignore"
	// GitDirectoryName is the name of the Git repository directory.
	GitDirectoryName = ".git"
	// ConfigFileName is the name of the local configuration file.
	ConfigFileName = ".apc.yaml"
	// GlobalConfigDirectoryName is the directory under the user's home holding global configuration.
	GlobalConfigDirectoryName = ".apc"
	// GlobalConfigFileName is the name of the configuration file inside GlobalConfigDirectoryName.
	GlobalConfigFileName = "config.yaml"
)

const pathSegmentSeparator = "/"

// DeduplicatePatterns removes duplicate and blank patterns from a slice while preserving order.
// The first occurrence of each unique pattern is kept.
func DeduplicatePatterns(patterns []string) []string {
	encounteredPatterns := make(map[string]struct{})
	result := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		trimmedPattern := strings.TrimSpace(pattern)
		if trimmedPattern == "" {
			continue
		}
		if _, exists := encounteredPatterns[trimmedPattern]; !exists {
			encounteredPatterns[trimmedPattern] = struct{}{}
			result = append(result, trimmedPattern)
		}
	}
	return result
}

// RootRelativePath expresses fullPath relative to root using forward slashes.
// The root itself maps to the empty string. Paths outside root are returned cleaned
// and slash-normalized.
func RootRelativePath(fullPath, root string) string {
	cleanPath := filepath.Clean(fullPath)
	cleanRoot := filepath.Clean(root)
	if cleanPath == cleanRoot {
		return ""
	}
	relativePath, relErr := filepath.Rel(cleanRoot, cleanPath)
	if relErr != nil {
		return NormalizeRelativePath(cleanPath)
	}
	return NormalizeRelativePath(relativePath)
}

// NormalizeRelativePath converts separators to forward slashes and strips
// leading "./", leading and trailing slashes. "." becomes the empty string.
func NormalizeRelativePath(relativePath string) string {
	normalized := strings.ReplaceAll(filepath.ToSlash(relativePath), "\\", pathSegmentSeparator)
	normalized = strings.TrimPrefix(normalized, "./")
	normalized = strings.Trim(normalized, pathSegmentSeparator)
	if normalized == "." {
		return ""
	}
	return normalized
}

// ParentRelativePath returns the parent of a root-relative path, or the empty
// string when the path sits directly under the root.
func ParentRelativePath(relativePath string) string {
	parent := path.Dir(relativePath)
	if parent == "." || parent == pathSegmentSeparator {
		return ""
	}
	return parent
}

// SplitRelativePath splits a root-relative path into its segments.
// The root (empty string) has no segments.
func SplitRelativePath(relativePath string) []string {
	if relativePath == "" {
		return nil
	}
	return strings.Split(relativePath, pathSegmentSeparator)
}
