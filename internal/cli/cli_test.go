package cli

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/temirov/apc/internal/commands"
	"github.com/temirov/apc/internal/config"
	"github.com/temirov/apc/internal/utils"
)

const expectedBasicOutput = "Directory Structure:\n" +
	"./\n" +
	"├── sub/\n" +
	"│   └── c.txt\n" +
	"└── a.txt\n" +
	"\nFile Contents:" +
	"\n--- a.txt ---\nhello\n" +
	"\n--- sub/c.txt ---\nworld\n"

const expectedStructureOutput = "Directory Structure:\n" +
	"./\n" +
	"├── sub/\n" +
	"│   └── c.txt\n" +
	"└── a.txt\n"

type recordingCopier struct {
	copied []string
}

func (copier *recordingCopier) Copy(text string) error {
	copier.copied = append(copier.copied, text)
	return nil
}

type cliFixture struct {
	workingDirectory string
	projectDirectory string
	stdout           *bytes.Buffer
	copier           *recordingCopier
	dependencies     Dependencies
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	workingDirectory := t.TempDir()
	projectDirectory := filepath.Join(workingDirectory, "project")
	files := map[string]string{
		"a.txt":     "hello",
		"b.bin":     "\x00binary",
		"sub/c.txt": "world\n",
	}
	for relativePath, content := range files {
		fullPath := filepath.Join(projectDirectory, filepath.FromSlash(relativePath))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", relativePath, err)
		}
	}
	fixture := &cliFixture{
		workingDirectory: workingDirectory,
		projectDirectory: projectDirectory,
		stdout:           &bytes.Buffer{},
		copier:           &recordingCopier{},
	}
	fixture.dependencies = Dependencies{
		Stdout:           fixture.stdout,
		Clipboard:        fixture.copier,
		WorkingDirectory: workingDirectory,
		HomeDirectory:    t.TempDir(),
		NewLogger:        func(bool) (*zap.Logger, error) { return zap.NewNop(), nil },
	}
	return fixture
}

func (fixture *cliFixture) run(arguments ...string) error {
	command := NewRootCommand(fixture.dependencies)
	command.SetArgs(normalizeBooleanFlagArguments(command, arguments))
	return command.Execute()
}

func TestRootCommandPrintsProjectContext(t *testing.T) {
	fixture := newCLIFixture(t)
	if err := fixture.run("project"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fixture.stdout.String() != expectedBasicOutput+"\n" {
		t.Fatalf("unexpected output:\n%q", fixture.stdout.String())
	}
}

func TestRootCommandStructureOnly(t *testing.T) {
	fixture := newCLIFixture(t)
	if err := fixture.run("--structure-only", "--include-binary", "project"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rendered := fixture.stdout.String()
	if strings.Contains(rendered, "File Contents:") || strings.Contains(rendered, "hello") {
		t.Fatalf("structure-only output contains file contents:\n%s", rendered)
	}
}

func TestRootCommandIncludeBinary(t *testing.T) {
	fixture := newCLIFixture(t)
	if err := fixture.run("project", "--include-binary"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(fixture.stdout.String(), "\n--- b.bin ---\n"+utils.BinaryContentPlaceholder+"\n") {
		t.Fatalf("expected binary placeholder in output:\n%s", fixture.stdout.String())
	}
}

func TestRootCommandWritesOutputFile(t *testing.T) {
	fixture := newCLIFixture(t)
	if err := fixture.run("project", "-o", "context.txt"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	outputPath := filepath.Join(fixture.workingDirectory, "context.txt")
	written, readErr := os.ReadFile(outputPath)
	if readErr != nil {
		t.Fatalf("read output: %v", readErr)
	}
	if string(written) != expectedBasicOutput {
		t.Fatalf("unexpected file content:\n%q", string(written))
	}
	if fixture.stdout.String() != "Project context written to: "+outputPath+"\n" {
		t.Fatalf("unexpected confirmation %q", fixture.stdout.String())
	}
}

func TestRootCommandFlagsOverrideConfiguration(t *testing.T) {
	fixture := newCLIFixture(t)
	configuration := "structure_only: true\nexclude:\n  - sub/\n"
	if err := os.WriteFile(filepath.Join(fixture.workingDirectory, utils.ConfigFileName), []byte(configuration), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if err := fixture.run("project"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fixture.stdout.String() != "Directory Structure:\n./\n└── a.txt\n\n" {
		t.Fatalf("expected configuration to apply, got %q", fixture.stdout.String())
	}

	fixture.stdout.Reset()
	if err := fixture.run("project", "--structure-only", "no", "-e", "*.bin"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fixture.stdout.String() != expectedBasicOutput+"\n" {
		t.Fatalf("expected flags to override configuration, got %q", fixture.stdout.String())
	}
}

func TestRootCommandMaxFileSizeBoundary(t *testing.T) {
	fixture := newCLIFixture(t)
	if err := fixture.run("project", "--max-file-size", "5"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rendered := fixture.stdout.String()
	if !strings.Contains(rendered, "--- a.txt ---") || strings.Contains(rendered, "--- sub/c.txt ---") {
		t.Fatalf("unexpected boundary behaviour:\n%s", rendered)
	}
}

func TestRootCommandRejectsInvalidInput(t *testing.T) {
	fixture := newCLIFixture(t)
	if err := fixture.run("missing"); !errors.Is(err, commands.ErrInvalidRoot) {
		t.Fatalf("expected ErrInvalidRoot, got %v", err)
	}
	if err := fixture.run("project", "--max-file-size", "0"); !errors.Is(err, config.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
	if err := fixture.run("project", "other"); err == nil {
		t.Fatalf("expected error for two positional arguments")
	}
	if fixture.stdout.Len() != 0 {
		t.Fatalf("no output expected on failure, got %q", fixture.stdout.String())
	}
}

func TestRootCommandCopiesToClipboard(t *testing.T) {
	fixture := newCLIFixture(t)
	if err := fixture.run("project", "--copy"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fixture.copier.copied) != 1 || fixture.copier.copied[0] != expectedBasicOutput {
		t.Fatalf("unexpected clipboard content %q", fixture.copier.copied)
	}
}

func TestRootCommandVersion(t *testing.T) {
	fixture := newCLIFixture(t)
	if err := fixture.run("--version"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(fixture.stdout.String(), "apc version: ") {
		t.Fatalf("unexpected version output %q", fixture.stdout.String())
	}
}

func TestInitCommandWritesConfiguration(t *testing.T) {
	fixture := newCLIFixture(t)
	if err := fixture.run("init"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	configurationPath := filepath.Join(fixture.workingDirectory, utils.ConfigFileName)
	if fixture.stdout.String() != "Configuration written to: "+configurationPath+"\n" {
		t.Fatalf("unexpected init output %q", fixture.stdout.String())
	}
	if err := fixture.run("init"); err == nil {
		t.Fatalf("expected error when configuration exists without --force")
	}
	if err := fixture.run("init", "--force"); err != nil {
		t.Fatalf("unexpected error with --force: %v", err)
	}
	if err := fixture.run("init", "--global"); err != nil {
		t.Fatalf("unexpected error with --global: %v", err)
	}
	if _, statErr := os.Stat(config.GlobalConfigurationPath(fixture.dependencies.HomeDirectory)); statErr != nil {
		t.Fatalf("expected global configuration: %v", statErr)
	}
}

func TestRootCommandHonorsIgnoreFiles(t *testing.T) {
	fixture := newCLIFixture(t)
	if err := os.WriteFile(filepath.Join(fixture.projectDirectory, utils.IgnoreFileName), []byte("sub/\n"), 0o644); err != nil {
		t.Fatalf("write .ignore: %v", err)
	}
	if err := fixture.run("project", "--structure-only"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fixture.stdout.String() != "Directory Structure:\n./\n└── a.txt\n\n" {
		t.Fatalf("expected .ignore to hide sub/, got %q", fixture.stdout.String())
	}

	fixture.stdout.Reset()
	if err := fixture.run("project", "--structure-only", "--no-ignore-files"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fixture.stdout.String() != expectedStructureOutput+"\n" {
		t.Fatalf("expected --no-ignore-files to disable .ignore, got %q", fixture.stdout.String())
	}
}

func TestRootCommandCollectsDirectoryNamedInit(t *testing.T) {
	fixture := newCLIFixture(t)
	if err := os.Rename(fixture.projectDirectory, filepath.Join(fixture.workingDirectory, "init")); err != nil {
		t.Fatalf("rename project: %v", err)
	}
	if err := fixture.run("./init"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fixture.stdout.String() != expectedBasicOutput+"\n" {
		t.Fatalf("unexpected output:\n%q", fixture.stdout.String())
	}
	if _, statErr := os.Stat(filepath.Join(fixture.workingDirectory, utils.ConfigFileName)); !os.IsNotExist(statErr) {
		t.Fatalf("collecting ./init must not write configuration, stat error %v", statErr)
	}
}
