// Package config loads apc configuration files and renders the default configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/temirov/apc/internal/utils"
)

// ErrInvalidConfiguration reports a configuration value outside its allowed range.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// LoadOptions controls how application configuration is discovered.
type LoadOptions struct {
	WorkingDirectory string
	ExplicitFilePath string
	// HomeDirectory overrides the user's home directory when locating the global file.
	HomeDirectory string
}

// ApplicationConfiguration holds configuration defaults for a run. Nil pointers, a nil
// Exclude and an empty Output mean "not configured" so that later sources only override
// what they set. An empty, non-nil Exclude clears inherited patterns.
type ApplicationConfiguration struct {
	Output        string   `mapstructure:"output" yaml:"output,omitempty"`
	MaxFileSize   *int64   `mapstructure:"max_file_size" yaml:"max_file_size"`
	IncludeBinary *bool    `mapstructure:"include_binary" yaml:"include_binary"`
	StructureOnly *bool    `mapstructure:"structure_only" yaml:"structure_only"`
	UseIgnore     *bool    `mapstructure:"use_ignore" yaml:"use_ignore"`
	UseGitignore  *bool    `mapstructure:"use_gitignore" yaml:"use_gitignore"`
	RootRulesOnly *bool    `mapstructure:"root_rules_only" yaml:"root_rules_only"`
	Exclude       []string `mapstructure:"exclude" yaml:"exclude"`
	Copy          *bool    `mapstructure:"copy" yaml:"copy"`
	Verbose       *bool    `mapstructure:"verbose" yaml:"verbose"`
}

// DefaultConfiguration returns the built-in defaults with every field set.
func DefaultConfiguration() ApplicationConfiguration {
	return ApplicationConfiguration{
		MaxFileSize:   int64Pointer(utils.DefaultMaxFileSize),
		IncludeBinary: boolPointer(false),
		StructureOnly: boolPointer(false),
		UseIgnore:     boolPointer(true),
		UseGitignore:  boolPointer(true),
		RootRulesOnly: boolPointer(false),
		Exclude:       []string{},
		Copy:          boolPointer(false),
		Verbose:       boolPointer(false),
	}
}

// LoadApplicationConfiguration loads the global file, then the local or explicit file,
// each overlaid onto the built-in defaults.
func LoadApplicationConfiguration(options LoadOptions) (ApplicationConfiguration, error) {
	workingDirectory := options.WorkingDirectory
	if workingDirectory == "" {
		currentDirectory, err := os.Getwd()
		if err != nil {
			return ApplicationConfiguration{}, fmt.Errorf("determine working directory: %w", err)
		}
		workingDirectory = currentDirectory
	}

	merged := DefaultConfiguration()

	homeDirectory := options.HomeDirectory
	if homeDirectory == "" {
		if resolvedHome, err := os.UserHomeDir(); err == nil {
			homeDirectory = resolvedHome
		}
	}
	if homeDirectory != "" {
		globalConfig, loadErr := loadConfigurationFromPath(GlobalConfigurationPath(homeDirectory), false)
		if loadErr != nil {
			return ApplicationConfiguration{}, loadErr
		}
		merged = merged.Merge(globalConfig)
	}

	localPath := resolveLocalConfigPath(workingDirectory, options.ExplicitFilePath)
	localConfig, loadErr := loadConfigurationFromPath(localPath, options.ExplicitFilePath != "")
	if loadErr != nil {
		return ApplicationConfiguration{}, loadErr
	}
	merged = merged.Merge(localConfig)

	if validationErr := merged.Validate(); validationErr != nil {
		return ApplicationConfiguration{}, validationErr
	}
	return merged, nil
}

// GlobalConfigurationPath returns the location of the per-user configuration file.
func GlobalConfigurationPath(homeDirectory string) string {
	return filepath.Join(homeDirectory, utils.GlobalConfigDirectoryName, utils.GlobalConfigFileName)
}

// Validate reports values outside their allowed range.
func (config ApplicationConfiguration) Validate() error {
	if config.MaxFileSize != nil && *config.MaxFileSize <= 0 {
		return fmt.Errorf("%w: max_file_size must be positive, got %d", ErrInvalidConfiguration, *config.MaxFileSize)
	}
	return nil
}

func resolveLocalConfigPath(workingDirectory, explicitPath string) string {
	if explicitPath != "" {
		if filepath.IsAbs(explicitPath) {
			return explicitPath
		}
		return filepath.Join(workingDirectory, explicitPath)
	}
	return filepath.Join(workingDirectory, utils.ConfigFileName)
}

// loadConfigurationFromPath reads one YAML file. A missing file is empty configuration
// unless it was requested explicitly.
func loadConfigurationFromPath(path string, required bool) (ApplicationConfiguration, error) {
	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) && !required {
			return ApplicationConfiguration{}, nil
		}
		return ApplicationConfiguration{}, fmt.Errorf("stat configuration %s: %w", path, statErr)
	}
	if info.IsDir() {
		return ApplicationConfiguration{}, fmt.Errorf("configuration path %s is a directory", path)
	}

	reader := viper.New()
	reader.SetConfigFile(path)
	reader.SetConfigType("yaml")
	if readErr := reader.ReadInConfig(); readErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("read configuration from %s: %w", path, readErr)
	}
	var config ApplicationConfiguration
	if decodeErr := reader.Unmarshal(&config); decodeErr != nil {
		return ApplicationConfiguration{}, fmt.Errorf("decode configuration from %s: %w", path, decodeErr)
	}
	return config, nil
}

// Merge overlays override onto the receiver returning the combined configuration.
func (config ApplicationConfiguration) Merge(override ApplicationConfiguration) ApplicationConfiguration {
	result := config
	if override.Output != "" {
		result.Output = override.Output
	}
	if override.MaxFileSize != nil {
		result.MaxFileSize = int64Pointer(*override.MaxFileSize)
	}
	if override.IncludeBinary != nil {
		result.IncludeBinary = cloneBool(override.IncludeBinary)
	}
	if override.StructureOnly != nil {
		result.StructureOnly = cloneBool(override.StructureOnly)
	}
	if override.UseIgnore != nil {
		result.UseIgnore = cloneBool(override.UseIgnore)
	}
	if override.UseGitignore != nil {
		result.UseGitignore = cloneBool(override.UseGitignore)
	}
	if override.RootRulesOnly != nil {
		result.RootRulesOnly = cloneBool(override.RootRulesOnly)
	}
	if override.Exclude != nil {
		result.Exclude = append([]string{}, utils.DeduplicatePatterns(override.Exclude)...)
	}
	if override.Copy != nil {
		result.Copy = cloneBool(override.Copy)
	}
	if override.Verbose != nil {
		result.Verbose = cloneBool(override.Verbose)
	}
	return result
}

// BoolValue dereferences value, returning fallback when it is unset.
func BoolValue(value *bool, fallback bool) bool {
	if value == nil {
		return fallback
	}
	return *value
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func boolPointer(value bool) *bool {
	return &value
}

func int64Pointer(value int64) *int64 {
	return &value
}
