package commands_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/temirov/apc/internal/commands"
	"github.com/temirov/apc/internal/ignore"
	"github.com/temirov/apc/internal/types"
	"github.com/temirov/apc/internal/utils"
)

const (
	textFileName      = "a.txt"
	textFileContent   = "hello"
	binaryFileName    = "b.bin"
	binaryFileContent = "\x00\xff"
	directoryName     = "sub"
	nestedFileName    = "c.txt"
	nestedFileContent = "world\n"
	defaultMaxSize    = int64(1048576)
)

func writeFixture(testingHandle *testing.T, rootDirectory string, relativePath string, content string) {
	testingHandle.Helper()
	fullPath := filepath.Join(rootDirectory, filepath.FromSlash(relativePath))
	if makeDirError := os.MkdirAll(filepath.Dir(fullPath), 0o755); makeDirError != nil {
		testingHandle.Fatalf("mkdir: %v", makeDirError)
	}
	if writeError := os.WriteFile(fullPath, []byte(content), 0o644); writeError != nil {
		testingHandle.Fatalf("writing %s: %v", relativePath, writeError)
	}
}

func collect(testingHandle *testing.T, walker *commands.Walker, rootDirectory string) *types.ProjectContext {
	testingHandle.Helper()
	projectContext, collectError := walker.Collect(rootDirectory)
	if collectError != nil {
		testingHandle.Fatalf("Collect error: %v", collectError)
	}
	return projectContext
}

func relativePaths(files []types.FileRecord) []string {
	paths := make([]string, 0, len(files))
	for _, file := range files {
		paths = append(paths, file.RelativePath)
	}
	return paths
}

func basicProject(testingHandle *testing.T) string {
	rootDirectory := testingHandle.TempDir()
	writeFixture(testingHandle, rootDirectory, textFileName, textFileContent)
	writeFixture(testingHandle, rootDirectory, binaryFileName, binaryFileContent)
	writeFixture(testingHandle, rootDirectory, directoryName+"/"+nestedFileName, nestedFileContent)
	return rootDirectory
}

// TestCollectSkipsBinaryByDefault verifies the basic scenario without binary inclusion.
func TestCollectSkipsBinaryByDefault(testingHandle *testing.T) {
	rootDirectory := basicProject(testingHandle)
	walker := &commands.Walker{MaxFileSize: defaultMaxSize}
	projectContext := collect(testingHandle, walker, rootDirectory)

	expectedPaths := []string{textFileName, directoryName + "/" + nestedFileName}
	if got := relativePaths(projectContext.Files); !reflect.DeepEqual(got, expectedPaths) {
		testingHandle.Fatalf("expected files %v, got %v", expectedPaths, got)
	}
	if projectContext.Files[0].Content != textFileContent || projectContext.Files[0].IsBinary {
		testingHandle.Fatalf("unexpected text record: %+v", projectContext.Files[0])
	}
	if !reflect.DeepEqual(projectContext.Directories, []string{directoryName}) {
		testingHandle.Fatalf("unexpected directories %v", projectContext.Directories)
	}
	if !projectContext.Tree.IsDirectory(directoryName) {
		testingHandle.Fatalf("sub must be registered as a directory")
	}
	if got := projectContext.Tree.Children(types.RootDirectoryPath); !reflect.DeepEqual(got, []string{textFileName, directoryName}) {
		testingHandle.Fatalf("unexpected root children %v", got)
	}
	expectedSummary := types.CollectionSummary{
		TotalFiles:       2,
		TotalDirectories: 1,
		TotalBytes:       int64(len(textFileContent) + len(nestedFileContent)),
		SkippedFiles:     1,
	}
	if projectContext.Summary != expectedSummary {
		testingHandle.Fatalf("expected summary %+v, got %+v", expectedSummary, projectContext.Summary)
	}
}

// TestCollectIncludesBinaryPlaceholder verifies binary files carry the placeholder when included.
func TestCollectIncludesBinaryPlaceholder(testingHandle *testing.T) {
	rootDirectory := basicProject(testingHandle)
	writeFixture(testingHandle, rootDirectory, "latin1.txt", "caf\xe9")
	walker := &commands.Walker{MaxFileSize: defaultMaxSize, IncludeBinary: true}
	projectContext := collect(testingHandle, walker, rootDirectory)

	placeholders := map[string]bool{}
	for _, file := range projectContext.Files {
		if file.IsBinary {
			if file.Content != utils.BinaryContentPlaceholder {
				testingHandle.Fatalf("binary record %s has content %q", file.RelativePath, file.Content)
			}
			placeholders[file.RelativePath] = true
		}
	}
	if !placeholders[binaryFileName] || !placeholders["latin1.txt"] || len(placeholders) != 2 {
		testingHandle.Fatalf("unexpected placeholder records %v", placeholders)
	}
}

// TestCollectSkipsUndecodableText verifies invalid UTF-8 is skipped without binary inclusion.
func TestCollectSkipsUndecodableText(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeFixture(testingHandle, rootDirectory, "latin1.txt", "caf\xe9")
	writeFixture(testingHandle, rootDirectory, "utf8.txt", "café")
	walker := &commands.Walker{MaxFileSize: defaultMaxSize}
	projectContext := collect(testingHandle, walker, rootDirectory)

	if got := relativePaths(projectContext.Files); !reflect.DeepEqual(got, []string{"utf8.txt"}) {
		testingHandle.Fatalf("unexpected files %v", got)
	}
}

// TestCollectMaxFileSizeBoundary verifies the size limit is inclusive.
func TestCollectMaxFileSizeBoundary(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeFixture(testingHandle, rootDirectory, "at_limit.txt", "12345")
	writeFixture(testingHandle, rootDirectory, "over_limit.txt", "123456")
	writeFixture(testingHandle, rootDirectory, "empty.txt", "")
	walker := &commands.Walker{MaxFileSize: 5}
	projectContext := collect(testingHandle, walker, rootDirectory)

	expectedPaths := []string{"at_limit.txt", "empty.txt"}
	if got := relativePaths(projectContext.Files); !reflect.DeepEqual(got, expectedPaths) {
		testingHandle.Fatalf("expected files %v, got %v", expectedPaths, got)
	}
}

// TestCollectNestedNegation verifies a subdirectory rule re-includes a file its ancestor excludes.
func TestCollectNestedNegation(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeFixture(testingHandle, rootDirectory, utils.RuleFileName, "*.log\n")
	writeFixture(testingHandle, rootDirectory, "a.log", "root log")
	writeFixture(testingHandle, rootDirectory, "sub/"+utils.RuleFileName, "!x.log\n")
	writeFixture(testingHandle, rootDirectory, "sub/x.log", "kept")
	writeFixture(testingHandle, rootDirectory, "sub/y.log", "dropped")
	walker := &commands.Walker{MaxFileSize: defaultMaxSize}
	projectContext := collect(testingHandle, walker, rootDirectory)

	if got := relativePaths(projectContext.Files); !reflect.DeepEqual(got, []string{"sub/x.log"}) {
		testingHandle.Fatalf("unexpected files %v", got)
	}
}

// TestCollectRootOnlyScope verifies nested rule files are ignored in root-only mode.
func TestCollectRootOnlyScope(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeFixture(testingHandle, rootDirectory, utils.RuleFileName, "*.log\n")
	writeFixture(testingHandle, rootDirectory, "sub/"+utils.RuleFileName, "!x.log\n")
	writeFixture(testingHandle, rootDirectory, "sub/x.log", "dropped")
	walker := &commands.Walker{
		MaxFileSize:   defaultMaxSize,
		IgnoreOptions: ignore.Options{Scope: ignore.ScopeRootOnly},
	}
	projectContext := collect(testingHandle, walker, rootDirectory)

	if len(projectContext.Files) != 0 {
		testingHandle.Fatalf("expected no files, got %v", relativePaths(projectContext.Files))
	}
}

// TestCollectDoesNotDescendIntoExcludedDirectories verifies excluded directories and their contents are absent.
func TestCollectDoesNotDescendIntoExcludedDirectories(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeFixture(testingHandle, rootDirectory, utils.RuleFileName, "build/\n")
	writeFixture(testingHandle, rootDirectory, "build/out.txt", "artifact")
	writeFixture(testingHandle, rootDirectory, "build/"+utils.RuleFileName, "[broken\n")
	writeFixture(testingHandle, rootDirectory, ".git/HEAD", "ref: refs/heads/main\n")
	writeFixture(testingHandle, rootDirectory, "src/main.go", "package main\n")
	walker := &commands.Walker{MaxFileSize: defaultMaxSize}
	projectContext := collect(testingHandle, walker, rootDirectory)

	if !reflect.DeepEqual(projectContext.Directories, []string{"src"}) {
		testingHandle.Fatalf("unexpected directories %v", projectContext.Directories)
	}
	if got := relativePaths(projectContext.Files); !reflect.DeepEqual(got, []string{"src/main.go"}) {
		testingHandle.Fatalf("unexpected files %v", got)
	}
}

// TestCollectExtraPatterns verifies command-line exclusions apply from the root.
func TestCollectExtraPatterns(testingHandle *testing.T) {
	rootDirectory := basicProject(testingHandle)
	walker := &commands.Walker{
		MaxFileSize:   defaultMaxSize,
		IgnoreOptions: ignore.Options{ExtraPatterns: []string{directoryName + "/"}},
	}
	projectContext := collect(testingHandle, walker, rootDirectory)

	if got := relativePaths(projectContext.Files); !reflect.DeepEqual(got, []string{textFileName}) {
		testingHandle.Fatalf("unexpected files %v", got)
	}
}

// TestCollectPreOrder verifies parents are visited before children in name order.
func TestCollectPreOrder(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeFixture(testingHandle, rootDirectory, "b/z.txt", "z")
	writeFixture(testingHandle, rootDirectory, "a/b/y.txt", "y")
	writeFixture(testingHandle, rootDirectory, "a/x.txt", "x")
	walker := &commands.Walker{MaxFileSize: defaultMaxSize}
	projectContext := collect(testingHandle, walker, rootDirectory)

	if !reflect.DeepEqual(projectContext.Directories, []string{"a", "a/b", "b"}) {
		testingHandle.Fatalf("unexpected directory order %v", projectContext.Directories)
	}
	if got := relativePaths(projectContext.Files); !reflect.DeepEqual(got, []string{"a/b/y.txt", "a/x.txt", "b/z.txt"}) {
		testingHandle.Fatalf("unexpected file order %v", got)
	}
}

// TestCollectDoesNotFollowDirectorySymlinks verifies symbolic links to directories are skipped.
func TestCollectDoesNotFollowDirectorySymlinks(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	targetDirectory := testingHandle.TempDir()
	writeFixture(testingHandle, targetDirectory, "outside.txt", "outside")
	writeFixture(testingHandle, rootDirectory, "inside.txt", "inside")
	if symlinkError := os.Symlink(targetDirectory, filepath.Join(rootDirectory, "linked")); symlinkError != nil {
		testingHandle.Skipf("symlinks unavailable: %v", symlinkError)
	}
	walker := &commands.Walker{MaxFileSize: defaultMaxSize}
	projectContext := collect(testingHandle, walker, rootDirectory)

	if got := relativePaths(projectContext.Files); !reflect.DeepEqual(got, []string{"inside.txt"}) {
		testingHandle.Fatalf("unexpected files %v", got)
	}
	if len(projectContext.Directories) != 0 {
		testingHandle.Fatalf("unexpected directories %v", projectContext.Directories)
	}
}

// TestCollectInvalidRoot verifies missing and non-directory roots are rejected.
func TestCollectInvalidRoot(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeFixture(testingHandle, rootDirectory, textFileName, textFileContent)
	walker := &commands.Walker{MaxFileSize: defaultMaxSize}

	invalidRoots := []string{
		filepath.Join(rootDirectory, "missing"),
		filepath.Join(rootDirectory, textFileName),
	}
	for _, invalidRoot := range invalidRoots {
		_, collectError := walker.Collect(invalidRoot)
		if !errors.Is(collectError, commands.ErrInvalidRoot) {
			testingHandle.Errorf("expected ErrInvalidRoot for %s, got %v", invalidRoot, collectError)
		}
	}
}

// TestCollectMalformedRuleFile verifies a malformed rule file aborts the walk.
func TestCollectMalformedRuleFile(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeFixture(testingHandle, rootDirectory, "sub/"+utils.RuleFileName, "ok\n[broken\n")
	walker := &commands.Walker{MaxFileSize: defaultMaxSize}

	_, collectError := walker.Collect(rootDirectory)
	if !errors.Is(collectError, ignore.ErrMalformedPattern) {
		testingHandle.Fatalf("expected ErrMalformedPattern, got %v", collectError)
	}
}

// TestCollectSkipsUnreadableDirectory verifies a directory that cannot be read is logged
// and skipped while the rest of the project is still collected.
func TestCollectSkipsUnreadableDirectory(testingHandle *testing.T) {
	if os.Geteuid() == 0 {
		testingHandle.Skip("permission bits are not enforced for root")
	}
	rootDirectory := testingHandle.TempDir()
	writeFixture(testingHandle, rootDirectory, textFileName, textFileContent)
	writeFixture(testingHandle, rootDirectory, "locked/hidden.txt", "hidden")
	lockedDirectory := filepath.Join(rootDirectory, "locked")
	if chmodError := os.Chmod(lockedDirectory, 0o000); chmodError != nil {
		testingHandle.Fatalf("chmod: %v", chmodError)
	}
	testingHandle.Cleanup(func() { _ = os.Chmod(lockedDirectory, 0o755) })

	walker := &commands.Walker{MaxFileSize: defaultMaxSize}
	projectContext := collect(testingHandle, walker, rootDirectory)
	if got := relativePaths(projectContext.Files); !reflect.DeepEqual(got, []string{textFileName}) {
		testingHandle.Fatalf("unexpected files %v", got)
	}
}

// TestCollectHonorsIgnoreFiles verifies .ignore files hide entries below .apcignore precedence.
func TestCollectHonorsIgnoreFiles(testingHandle *testing.T) {
	rootDirectory := testingHandle.TempDir()
	writeFixture(testingHandle, rootDirectory, textFileName, textFileContent)
	writeFixture(testingHandle, rootDirectory, "secret.txt", "secret")
	writeFixture(testingHandle, rootDirectory, "sub/kept.log", "kept")
	writeFixture(testingHandle, rootDirectory, "sub/dropped.log", "dropped")
	writeFixture(testingHandle, rootDirectory, utils.IgnoreFileName, "secret.txt\n*.log\n")
	writeFixture(testingHandle, rootDirectory, "sub/"+utils.RuleFileName, "!kept.log\n")

	walker := &commands.Walker{
		IgnoreOptions: ignore.Options{UseIgnoreFiles: true},
		MaxFileSize:   defaultMaxSize,
	}
	projectContext := collect(testingHandle, walker, rootDirectory)
	expectedPaths := []string{textFileName, "sub/kept.log"}
	if got := relativePaths(projectContext.Files); !reflect.DeepEqual(got, expectedPaths) {
		testingHandle.Fatalf("expected files %v, got %v", expectedPaths, got)
	}

	walker.IgnoreOptions.UseIgnoreFiles = false
	projectContext = collect(testingHandle, walker, rootDirectory)
	expectedPaths = []string{textFileName, "secret.txt", "sub/dropped.log", "sub/kept.log"}
	if got := relativePaths(projectContext.Files); !reflect.DeepEqual(got, expectedPaths) {
		testingHandle.Fatalf("expected files %v with .ignore disabled, got %v", expectedPaths, got)
	}
}
