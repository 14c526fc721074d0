package ignore

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/temirov/apc/internal/utils"
)

const (
	gitConfigFileName         = ".gitconfig"
	gitConfigType             = "ini"
	gitExcludesFileKey        = "core.excludesfile"
	gitInfoDirectoryName      = "info"
	gitExcludeFileName        = "exclude"
	gitGlobalIgnoreDirectory  = "git"
	gitGlobalIgnoreFileName   = "ignore"
	xdgConfigHomeVariable     = "XDG_CONFIG_HOME"
	defaultConfigDirectory    = ".config"
	homeDirectoryShortcut     = "~"
	warningMalformedVCSFormat = "skipping malformed pattern"
)

// vcsLayer evaluates git ignore sources as a layer independent of apc rule files.
// Per-directory .gitignore files take precedence over the repository exclude file,
// which takes precedence over the user's global excludes file.
type vcsLayer struct {
	repository utils.GitRepository
	gitignores map[string]*RuleSet
	baseRules  []*RuleSet
	logger     *zap.Logger
}

// newVCSLayer discovers the repository enclosing root. When root is not inside a git
// work tree the layer is nil and git sources are ignored entirely.
func newVCSLayer(root string, homeDirectory string, logger *zap.Logger) (*vcsLayer, error) {
	repository, found := utils.FindGitRepository(root)
	if !found {
		logger.Debug("no git repository found; skipping git ignore sources", zap.String("root", root))
		return nil, nil
	}

	layer := &vcsLayer{
		repository: repository,
		gitignores: make(map[string]*RuleSet),
		logger:     logger,
	}

	excludeRules, excludeError := layer.loadLenient(filepath.Join(repository.GitDirectory, gitInfoDirectoryName, gitExcludeFileName))
	if excludeError != nil {
		return nil, excludeError
	}
	if excludeRules != nil {
		layer.baseRules = append(layer.baseRules, excludeRules)
	}

	if globalPath := resolveGlobalExcludesFile(homeDirectory, logger); globalPath != "" {
		globalRules, globalError := layer.loadLenient(globalPath)
		if globalError != nil {
			logger.Warn("unable to read global git excludes", zap.String("path", globalPath), zap.Error(globalError))
		} else if globalRules != nil {
			layer.baseRules = append(layer.baseRules, globalRules)
		}
	}

	// .gitignore files between the work tree and the walk root apply to the walk but
	// are never visited by it.
	for _, directory := range directoriesBetween(repository.WorkTree, filepath.Dir(root)) {
		if loadError := layer.loadDirectory(directory); loadError != nil {
			return nil, loadError
		}
	}
	return layer, nil
}

// loadDirectory reads the .gitignore of directory once.
func (layer *vcsLayer) loadDirectory(directory string) error {
	if _, seen := layer.gitignores[directory]; seen {
		return nil
	}
	if !isWithin(directory, layer.repository.WorkTree) {
		layer.gitignores[directory] = nil
		return nil
	}
	ruleSet, loadError := layer.loadLenient(filepath.Join(directory, utils.GitIgnoreFileName))
	if loadError != nil {
		return loadError
	}
	layer.gitignores[directory] = ruleSet
	return nil
}

// excludes reports whether the git sources exclude cleanPath.
func (layer *vcsLayer) excludes(cleanPath string, isDirectory bool) bool {
	decision := decideUpwards(cleanPath, isDirectory, layer.repository.WorkTree, func(directory string) *RuleSet {
		return layer.gitignores[directory]
	})
	if decision == DecisionNone {
		relativePath := utils.RootRelativePath(cleanPath, layer.repository.WorkTree)
		for _, ruleSet := range layer.baseRules {
			if decision = ruleSet.Decide(relativePath, isDirectory); decision != DecisionNone {
				break
			}
		}
	}
	return decision == DecisionExclude
}

// loadLenient compiles a git-owned ignore file. Git tolerates patterns apc cannot
// compile, so malformed lines are logged and skipped rather than aborting the run.
// An unreadable file counts as absent.
func (layer *vcsLayer) loadLenient(filePath string) (*RuleSet, error) {
	ruleSet, loadError := loadRuleFile(filePath, func(malformed error) error {
		layer.logger.Warn(warningMalformedVCSFormat, zap.Error(malformed))
		return nil
	})
	if errors.Is(loadError, os.ErrPermission) {
		layer.logger.Debug(warningUnreadableRules, zap.String("path", filePath), zap.Error(loadError))
		return nil, nil
	}
	return ruleSet, loadError
}

// resolveGlobalExcludesFile mirrors git's lookup: core.excludesFile from ~/.gitconfig,
// then $XDG_CONFIG_HOME/git/ignore, then ~/.config/git/ignore.
func resolveGlobalExcludesFile(homeDirectory string, logger *zap.Logger) string {
	if homeDirectory == "" {
		resolvedHome, homeError := os.UserHomeDir()
		if homeError != nil {
			return ""
		}
		homeDirectory = resolvedHome
	}

	gitConfigPath := filepath.Join(homeDirectory, gitConfigFileName)
	if _, statError := os.Stat(gitConfigPath); statError == nil {
		reader := viper.New()
		reader.SetConfigFile(gitConfigPath)
		reader.SetConfigType(gitConfigType)
		if readError := reader.ReadInConfig(); readError != nil {
			logger.Debug("unable to parse git configuration", zap.String("path", gitConfigPath), zap.Error(readError))
		} else if configured := strings.TrimSpace(reader.GetString(gitExcludesFileKey)); configured != "" {
			return expandHome(strings.Trim(configured, `"`), homeDirectory)
		}
	}

	if configHome := strings.TrimSpace(os.Getenv(xdgConfigHomeVariable)); configHome != "" {
		return filepath.Join(configHome, gitGlobalIgnoreDirectory, gitGlobalIgnoreFileName)
	}
	return filepath.Join(homeDirectory, defaultConfigDirectory, gitGlobalIgnoreDirectory, gitGlobalIgnoreFileName)
}

// expandHome replaces a leading "~" with homeDirectory.
func expandHome(configuredPath string, homeDirectory string) string {
	if configuredPath == homeDirectoryShortcut {
		return homeDirectory
	}
	if strings.HasPrefix(configuredPath, homeDirectoryShortcut+"/") {
		return filepath.Join(homeDirectory, configuredPath[2:])
	}
	return configuredPath
}

// directoriesBetween lists top and every directory below it down to bottom, inclusive.
// It returns nil when bottom is not within top.
func directoriesBetween(top string, bottom string) []string {
	if !isWithin(bottom, top) {
		return nil
	}
	var chain []string
	for current := bottom; ; current = filepath.Dir(current) {
		chain = append(chain, current)
		if current == top || filepath.Dir(current) == current {
			break
		}
	}
	for left, right := 0, len(chain)-1; left < right; left, right = left+1, right-1 {
		chain[left], chain[right] = chain[right], chain[left]
	}
	return chain
}
