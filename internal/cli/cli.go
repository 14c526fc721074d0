// Package cli provides the command line interface.
package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/apc/internal/commands"
	"github.com/temirov/apc/internal/config"
	"github.com/temirov/apc/internal/ignore"
	"github.com/temirov/apc/internal/output"
	"github.com/temirov/apc/internal/services/clipboard"
	"github.com/temirov/apc/internal/utils"
)

const (
	outputFlagName        = "output"
	outputFlagShorthand   = "o"
	maxFileSizeFlagName   = "max-file-size"
	includeBinaryFlagName = "include-binary"
	structureOnlyFlagName = "structure-only"
	noIgnoreFilesFlagName = "no-ignore-files"
	noGitignoreFlagName   = "no-gitignore"
	rootRulesOnlyFlagName = "root-rules-only"
	exclusionFlagName     = "exclude"
	exclusionFlagShort    = "e"
	copyFlagName          = "copy"
	configFlagName        = "config"
	verboseFlagName       = "verbose"
	versionFlagName       = "version"
	globalFlagName        = "global"
	forceFlagName         = "force"

	versionTemplate      = "apc version: %s\n"
	defaultPath          = "."
	rootUse              = "apc [path]"
	rootShortDescription = "collect a project's structure and file contents as one text"
	rootLongDescription  = `apc walks a project directory and prints its directory structure followed by
the contents of every visible text file, ready to paste into an AI assistant.

Visibility follows .apcignore files in any directory (gitignore syntax, nearest
directory wins), then .ignore files, then the repository's .gitignore files,
info/exclude and the global git excludes file. Control files and VCS or IDE metadata
directories are never shown.

Configuration is read from ~/.apc/config.yaml and ./.apc.yaml (or --config); flags
given on the command line take precedence.`
	rootUsageExample = `  # Print the context of the current directory
  apc

  # Write the structure only, ignoring .gitignore files
  apc ./service --structure-only --no-gitignore -o structure.txt

  # Exclude vendored code and copy the result to the clipboard
  apc -e vendor/ -e '*.pb.go' --copy

  # Collect a directory named like a subcommand
  apc ./init`
	initUse              = "init"
	initShortDescription = "write a default configuration file"
	initLongDescription  = `Write the default configuration to ./.apc.yaml, or to ~/.apc/config.yaml with --global.
An existing file is kept unless --force is given. To collect a directory named "init",
pass it as a path: apc ./init`

	outputFlagDescription        = "write the result to this file instead of standard output"
	maxFileSizeFlagDescription   = "skip files larger than this many bytes"
	includeBinaryFlagDescription = "include binary files with a placeholder body"
	structureOnlyFlagDescription = "print only the directory structure"
	noIgnoreFilesFlagDescription = "do not apply .ignore files"
	noGitignoreFlagDescription   = "do not apply .gitignore, info/exclude or global git excludes"
	rootRulesOnlyFlagDescription = "honor only the .apcignore at the root"
	exclusionFlagDescription     = "exclude paths matching this gitignore-style pattern (repeatable)"
	copyFlagDescription          = "also copy the result to the system clipboard"
	configFlagDescription        = "configuration file (default ./" + utils.ConfigFileName + ")"
	verboseFlagDescription       = "log skipped paths and other debug diagnostics"
	versionFlagDescription       = "display application version"
	globalFlagDescription        = "write the global configuration under the home directory"
	forceFlagDescription         = "overwrite an existing configuration file"

	configurationWrittenFormat  = "Configuration written to: %s\n"
	workingDirectoryErrorFormat = "unable to determine working directory: %w"
	loggerErrorFormat           = "initialize logger: %w"
)

// Dependencies are the collaborators of the command tree. Zero values select the
// process defaults.
type Dependencies struct {
	Stdout           io.Writer
	Clipboard        clipboard.Copier
	WorkingDirectory string
	HomeDirectory    string
	NewLogger        func(verbose bool) (*zap.Logger, error)
}

func (dependencies Dependencies) withDefaults() Dependencies {
	if dependencies.Stdout == nil {
		dependencies.Stdout = os.Stdout
	}
	if dependencies.Clipboard == nil {
		dependencies.Clipboard = clipboard.NewService()
	}
	if dependencies.NewLogger == nil {
		dependencies.NewLogger = utils.NewApplicationLogger
	}
	return dependencies
}

// Execute runs the apc application with the process arguments.
func Execute() error {
	rootCommand := NewRootCommand(Dependencies{})
	rootCommand.SetArgs(normalizeBooleanFlagArguments(rootCommand, os.Args[1:]))
	return rootCommand.Execute()
}

// runOptions stores the raw flag values of the root command.
type runOptions struct {
	outputPath        string
	maxFileSize       int64
	includeBinary     bool
	structureOnly     bool
	disableIgnoreFile bool
	disableGitignore  bool
	rootRulesOnly     bool
	exclusionPatterns []string
	copyToClipboard   bool
	configPath        string
	verbose           bool
	showVersion       bool
}

// NewRootCommand builds the root Cobra command.
func NewRootCommand(dependencies Dependencies) *cobra.Command {
	dependencies = dependencies.withDefaults()
	var options runOptions

	rootCommand := &cobra.Command{
		Use:           rootUse,
		Short:         rootShortDescription,
		Long:          rootLongDescription,
		Example:       rootUsageExample,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, arguments []string) error {
			if options.showVersion {
				_, printError := fmt.Fprintf(dependencies.Stdout, versionTemplate, utils.GetApplicationVersion())
				return printError
			}
			rootPath := defaultPath
			if len(arguments) == 1 {
				rootPath = arguments[0]
			}
			return runCollection(command, dependencies, options, rootPath)
		},
	}
	rootCommand.SetOut(dependencies.Stdout)

	flagSet := rootCommand.Flags()
	flagSet.StringVarP(&options.outputPath, outputFlagName, outputFlagShorthand, "", outputFlagDescription)
	flagSet.Int64Var(&options.maxFileSize, maxFileSizeFlagName, utils.DefaultMaxFileSize, maxFileSizeFlagDescription)
	registerBooleanFlag(flagSet, &options.includeBinary, includeBinaryFlagName, includeBinaryFlagDescription)
	registerBooleanFlag(flagSet, &options.structureOnly, structureOnlyFlagName, structureOnlyFlagDescription)
	registerBooleanFlag(flagSet, &options.disableIgnoreFile, noIgnoreFilesFlagName, noIgnoreFilesFlagDescription)
	registerBooleanFlag(flagSet, &options.disableGitignore, noGitignoreFlagName, noGitignoreFlagDescription)
	registerBooleanFlag(flagSet, &options.rootRulesOnly, rootRulesOnlyFlagName, rootRulesOnlyFlagDescription)
	flagSet.StringArrayVarP(&options.exclusionPatterns, exclusionFlagName, exclusionFlagShort, nil, exclusionFlagDescription)
	registerBooleanFlag(flagSet, &options.copyToClipboard, copyFlagName, copyFlagDescription)
	flagSet.StringVar(&options.configPath, configFlagName, "", configFlagDescription)
	registerBooleanFlag(flagSet, &options.verbose, verboseFlagName, verboseFlagDescription)
	registerBooleanFlag(flagSet, &options.showVersion, versionFlagName, versionFlagDescription)

	rootCommand.AddCommand(createInitCommand(dependencies))
	return rootCommand
}

// runCollection resolves configuration, collects the project context and delivers it.
// Nothing is written until the complete text has been rendered.
func runCollection(command *cobra.Command, dependencies Dependencies, options runOptions, rootPath string) error {
	workingDirectory, workingDirectoryError := resolveWorkingDirectory(dependencies)
	if workingDirectoryError != nil {
		return workingDirectoryError
	}
	configuration, configurationError := config.LoadApplicationConfiguration(config.LoadOptions{
		WorkingDirectory: workingDirectory,
		ExplicitFilePath: options.configPath,
		HomeDirectory:    dependencies.HomeDirectory,
	})
	if configurationError != nil {
		return configurationError
	}
	configuration = applyFlagOverrides(command, configuration, options)
	if validationError := configuration.Validate(); validationError != nil {
		return validationError
	}

	logger, loggerError := dependencies.NewLogger(config.BoolValue(configuration.Verbose, false))
	if loggerError != nil {
		return fmt.Errorf(loggerErrorFormat, loggerError)
	}
	defer func() { _ = logger.Sync() }()

	if !filepath.IsAbs(rootPath) {
		rootPath = filepath.Join(workingDirectory, rootPath)
	}
	scope := ignore.ScopeNested
	if config.BoolValue(configuration.RootRulesOnly, false) {
		scope = ignore.ScopeRootOnly
	}
	walker := &commands.Walker{
		IgnoreOptions: ignore.Options{
			Scope:          scope,
			ExtraPatterns:  configuration.Exclude,
			UseIgnoreFiles: config.BoolValue(configuration.UseIgnore, true),
			UseGitignore:   config.BoolValue(configuration.UseGitignore, true),
			HomeDirectory:  dependencies.HomeDirectory,
			Logger:         logger,
		},
		MaxFileSize:   *configuration.MaxFileSize,
		IncludeBinary: config.BoolValue(configuration.IncludeBinary, false),
		Logger:        logger,
	}
	projectContext, collectError := walker.Collect(rootPath)
	if collectError != nil {
		return collectError
	}

	rendered := output.RenderProjectContext(projectContext, config.BoolValue(configuration.StructureOnly, false))

	outputPath := configuration.Output
	if outputPath != "" && !filepath.IsAbs(outputPath) {
		outputPath = filepath.Join(workingDirectory, outputPath)
	}
	destination := output.Destination{
		OutputPath:      outputPath,
		Stdout:          dependencies.Stdout,
		CopyToClipboard: config.BoolValue(configuration.Copy, false),
		Clipboard:       dependencies.Clipboard,
		Logger:          logger,
	}
	return destination.Deliver(rendered)
}

// applyFlagOverrides overlays the flags that were set explicitly on the command line.
func applyFlagOverrides(command *cobra.Command, configuration config.ApplicationConfiguration, options runOptions) config.ApplicationConfiguration {
	flagSet := command.Flags()
	var overrides config.ApplicationConfiguration
	if flagSet.Changed(outputFlagName) {
		overrides.Output = options.outputPath
	}
	if flagSet.Changed(maxFileSizeFlagName) {
		maxFileSize := options.maxFileSize
		overrides.MaxFileSize = &maxFileSize
	}
	if flagSet.Changed(includeBinaryFlagName) {
		overrides.IncludeBinary = &options.includeBinary
	}
	if flagSet.Changed(structureOnlyFlagName) {
		overrides.StructureOnly = &options.structureOnly
	}
	if flagSet.Changed(noIgnoreFilesFlagName) {
		useIgnore := !options.disableIgnoreFile
		overrides.UseIgnore = &useIgnore
	}
	if flagSet.Changed(noGitignoreFlagName) {
		useGitignore := !options.disableGitignore
		overrides.UseGitignore = &useGitignore
	}
	if flagSet.Changed(rootRulesOnlyFlagName) {
		overrides.RootRulesOnly = &options.rootRulesOnly
	}
	if flagSet.Changed(exclusionFlagName) {
		overrides.Exclude = options.exclusionPatterns
	}
	if flagSet.Changed(copyFlagName) {
		overrides.Copy = &options.copyToClipboard
	}
	if flagSet.Changed(verboseFlagName) {
		overrides.Verbose = &options.verbose
	}
	return configuration.Merge(overrides)
}

func resolveWorkingDirectory(dependencies Dependencies) (string, error) {
	if dependencies.WorkingDirectory != "" {
		return dependencies.WorkingDirectory, nil
	}
	workingDirectory, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf(workingDirectoryErrorFormat, err)
	}
	return workingDirectory, nil
}

// createInitCommand returns the init subcommand.
func createInitCommand(dependencies Dependencies) *cobra.Command {
	var global, force bool
	initCommand := &cobra.Command{
		Use:   initUse,
		Short: initShortDescription,
		Long:  initLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			workingDirectory, workingDirectoryError := resolveWorkingDirectory(dependencies)
			if workingDirectoryError != nil {
				return workingDirectoryError
			}
			target := config.InitTargetLocal
			if global {
				target = config.InitTargetGlobal
			}
			writtenPath, initError := config.InitializeConfiguration(config.InitOptions{
				Target:           target,
				Force:            force,
				WorkingDirectory: workingDirectory,
				HomeDirectory:    dependencies.HomeDirectory,
			})
			if initError != nil {
				return initError
			}
			_, printError := fmt.Fprintf(dependencies.Stdout, configurationWrittenFormat, writtenPath)
			return printError
		},
	}
	registerBooleanFlag(initCommand.Flags(), &global, globalFlagName, globalFlagDescription)
	registerBooleanFlag(initCommand.Flags(), &force, forceFlagName, forceFlagDescription)
	return initCommand
}
