package utils

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

const gitDirectoryFilePrefix = "gitdir:"

// GitRepository locates a git work tree and its metadata directory.
type GitRepository struct {
	// WorkTree is the absolute directory containing the .git entry.
	WorkTree string
	// GitDirectory is the absolute metadata directory. For worktrees and
	// submodules it is the target of the "gitdir:" pointer file.
	GitDirectory string
}

// FindGitRepository searches upward from startDirectory for a directory holding a
// .git entry. Only existence is checked; repository contents are never validated.
func FindGitRepository(startDirectory string) (GitRepository, bool) {
	absoluteStartDirectory, errorAbsolute := filepath.Abs(startDirectory)
	if errorAbsolute != nil {
		return GitRepository{}, false
	}

	currentDirectory := absoluteStartDirectory
	for {
		gitPath := filepath.Join(currentDirectory, GitDirectoryName)
		fileInformation, errorStat := os.Stat(gitPath)
		if errorStat == nil {
			if fileInformation.IsDir() {
				return GitRepository{WorkTree: currentDirectory, GitDirectory: gitPath}, true
			}
			if pointedDirectory, ok := readGitDirectoryPointer(gitPath); ok {
				return GitRepository{WorkTree: currentDirectory, GitDirectory: pointedDirectory}, true
			}
		}

		parentDirectory := filepath.Dir(currentDirectory)
		if parentDirectory == currentDirectory {
			break
		}
		currentDirectory = parentDirectory
	}

	return GitRepository{}, false
}

// readGitDirectoryPointer resolves a ".git" file of the form "gitdir: <path>".
//
// #nosec G304
func readGitDirectoryPointer(gitFilePath string) (string, bool) {
	fileHandle, openError := os.Open(gitFilePath)
	if openError != nil {
		return "", false
	}
	defer fileHandle.Close()

	scanner := bufio.NewScanner(fileHandle)
	if !scanner.Scan() {
		return "", false
	}
	firstLine := strings.TrimSpace(scanner.Text())
	if !strings.HasPrefix(firstLine, gitDirectoryFilePrefix) {
		return "", false
	}
	target := strings.TrimSpace(strings.TrimPrefix(firstLine, gitDirectoryFilePrefix))
	if target == "" {
		return "", false
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(gitFilePath), target)
	}
	return filepath.Clean(target), true
}
