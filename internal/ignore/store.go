package ignore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/apc/internal/utils"
)

// Scope selects which directories may contribute rule files.
type Scope int

const (
	// ScopeNested honors a rule file in every directory of the walk.
	ScopeNested Scope = iota
	// ScopeRootOnly honors only the rule file at the walk root.
	ScopeRootOnly
)

const (
	extraPatternsSource     = "command line"
	warningUnreadableRules  = "skipping unreadable rule file"
	warningMalformedIgnore  = "skipping malformed pattern"
	debugLoadedRulesMessage = "loaded ignore rules"
	errorLoadRuleFileFormat = "loading %s from %s: %w"
	errorResolveRootFormat  = "resolving root %s: %w"
)

// alwaysExcludedNames are directory names that hide a path unconditionally.
var alwaysExcludedNames = map[string]struct{}{
	utils.GitDirectoryName: {},
	".hg":                  {},
	".svn":                 {},
	".idea":                {},
	".vscode":              {},
}

// Options configures a Store.
type Options struct {
	// RuleFileName is the per-directory rule file name. Defaults to utils.RuleFileName.
	RuleFileName string
	// Scope selects nested or root-only rule files.
	Scope Scope
	// ExtraPatterns are appended to the root rule set and take precedence over it.
	ExtraPatterns []string
	// UseIgnoreFiles enables per-directory .ignore files below the apc rule files.
	UseIgnoreFiles bool
	// UseGitignore enables the version-control layer.
	UseGitignore bool
	// HomeDirectory overrides the user's home directory when resolving global git excludes.
	HomeDirectory string
	// Logger receives diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger
}

// Store caches per-directory rule sets for one walk and answers visibility queries.
// A Store is not safe for concurrent use.
type Store struct {
	root           string
	ruleFileName   string
	scope          Scope
	extraRules     *RuleSet
	ruleSets       map[string]*RuleSet
	useIgnoreFiles bool
	ignoreFileSets map[string]*RuleSet
	vcs            *vcsLayer
	logger         *zap.Logger
}

// NewStore creates a Store for the walk rooted at root. Repository-wide version-control
// sources are read eagerly so that their errors surface before the walk starts.
func NewStore(root string, options Options) (*Store, error) {
	absoluteRoot, absoluteError := filepath.Abs(root)
	if absoluteError != nil {
		return nil, fmt.Errorf(errorResolveRootFormat, root, absoluteError)
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ruleFileName := options.RuleFileName
	if ruleFileName == "" {
		ruleFileName = utils.RuleFileName
	}

	store := &Store{
		root:           filepath.Clean(absoluteRoot),
		ruleFileName:   ruleFileName,
		scope:          options.Scope,
		ruleSets:       make(map[string]*RuleSet),
		useIgnoreFiles: options.UseIgnoreFiles,
		ignoreFileSets: make(map[string]*RuleSet),
		logger:         logger,
	}

	extraPatterns := utils.DeduplicatePatterns(options.ExtraPatterns)
	if len(extraPatterns) > 0 {
		extraRules, compileError := CompileRules(extraPatternsSource, extraPatterns)
		if compileError != nil {
			return nil, compileError
		}
		store.extraRules = extraRules
	}

	if options.UseGitignore {
		vcs, vcsError := newVCSLayer(store.root, options.HomeDirectory, logger)
		if vcsError != nil {
			return nil, vcsError
		}
		store.vcs = vcs
	}
	return store, nil
}

// Root returns the absolute walk root.
func (store *Store) Root() string {
	return store.root
}

// LoadRulesFor returns the rule set declared by directory's rule file, compiling and
// caching it on first use. A nil result means the directory has no rule file. The
// cache is never evicted, so each directory is read at most once per Store. A rule
// file that cannot be read is logged and treated as absent; only malformed patterns
// are errors.
func (store *Store) LoadRulesFor(directory string) (*RuleSet, error) {
	cleanDirectory := filepath.Clean(directory)
	if cached, seen := store.ruleSets[cleanDirectory]; seen {
		return cached, nil
	}
	if store.scope == ScopeRootOnly && cleanDirectory != store.root {
		store.ruleSets[cleanDirectory] = nil
		return nil, nil
	}

	ruleFilePath := filepath.Join(cleanDirectory, store.ruleFileName)
	ruleSet, loadError := LoadRuleFile(ruleFilePath)
	if loadError != nil {
		if !errors.Is(loadError, os.ErrPermission) {
			return nil, fmt.Errorf(errorLoadRuleFileFormat, store.ruleFileName, cleanDirectory, loadError)
		}
		store.logger.Warn(warningUnreadableRules, zap.String("path", ruleFilePath), zap.Error(loadError))
		ruleSet = nil
	}
	if cleanDirectory == store.root {
		ruleSet = ruleSet.extend(store.extraRules)
	}
	if ruleSet != nil {
		store.logger.Debug(debugLoadedRulesMessage,
			zap.String("source", ruleSet.Source()),
			zap.Strings("patterns", ruleSet.Patterns()))
	}
	store.ruleSets[cleanDirectory] = ruleSet
	return ruleSet, nil
}

// Prepare loads every rule source declared in directory. The walker calls it when it
// first visits a directory, before evaluating any of the directory's entries.
func (store *Store) Prepare(directory string) error {
	if _, loadError := store.LoadRulesFor(directory); loadError != nil {
		return loadError
	}
	if store.useIgnoreFiles {
		store.loadIgnoreFile(filepath.Clean(directory))
	}
	if store.vcs != nil {
		return store.vcs.loadDirectory(filepath.Clean(directory))
	}
	return nil
}

// loadIgnoreFile reads the .ignore file of directory once. These files are shared with
// other search tools, so unreadable files and malformed lines are logged and skipped.
func (store *Store) loadIgnoreFile(directory string) {
	if _, seen := store.ignoreFileSets[directory]; seen {
		return
	}
	ignoreFilePath := filepath.Join(directory, utils.IgnoreFileName)
	ruleSet, loadError := loadRuleFile(ignoreFilePath, func(malformed error) error {
		store.logger.Warn(warningMalformedIgnore, zap.Error(malformed))
		return nil
	})
	if loadError != nil {
		store.logger.Warn(warningUnreadableRules, zap.String("path", ignoreFilePath), zap.Error(loadError))
		ruleSet = nil
	}
	store.ignoreFileSets[directory] = ruleSet
}

// IsExcluded reports whether absolutePath must be hidden. Checks run in order and the
// first positive one wins: always-excluded directory names, control file names, the
// apc rule sets of the containing directory and its ancestors up to the root, the
// .ignore files in the same directories, then the version-control layer. The root itself is never excluded. Ancestor directories are
// assumed to have been admitted already, as the walker never descends into an
// excluded directory.
func (store *Store) IsExcluded(absolutePath string, isDirectory bool) bool {
	cleanPath := filepath.Clean(absolutePath)
	relativePath := utils.RootRelativePath(cleanPath, store.root)
	if relativePath == "" {
		return false
	}

	segments := utils.SplitRelativePath(relativePath)
	for _, segment := range segments {
		if _, excluded := alwaysExcludedNames[segment]; excluded {
			return true
		}
	}

	baseName := segments[len(segments)-1]
	if baseName == utils.GitIgnoreFileName || baseName == utils.IgnoreFileName || baseName == store.ruleFileName {
		return true
	}

	switch store.decideByRules(cleanPath, isDirectory) {
	case DecisionExclude:
		return true
	case DecisionInclude:
		return false
	}

	if store.useIgnoreFiles {
		switch store.decideByIgnoreFiles(cleanPath, isDirectory) {
		case DecisionExclude:
			return true
		case DecisionInclude:
			return false
		}
	}

	if store.vcs != nil {
		return store.vcs.excludes(cleanPath, isDirectory)
	}
	return false
}

// decideByRules walks from the containing directory up to the root and returns the
// first decision produced by a cached rule set.
func (store *Store) decideByRules(cleanPath string, isDirectory bool) Decision {
	return decideUpwards(cleanPath, isDirectory, store.root, func(directory string) *RuleSet {
		return store.ruleSets[directory]
	})
}

// decideByIgnoreFiles is decideByRules over the cached .ignore files.
func (store *Store) decideByIgnoreFiles(cleanPath string, isDirectory bool) Decision {
	return decideUpwards(cleanPath, isDirectory, store.root, func(directory string) *RuleSet {
		return store.ignoreFileSets[directory]
	})
}

// decideUpwards evaluates the rule sets returned by lookup for each ancestor directory of
// cleanPath, nearest first, stopping after stopDirectory. The nearest decision wins.
func decideUpwards(cleanPath string, isDirectory bool, stopDirectory string, lookup func(string) *RuleSet) Decision {
	directory := filepath.Dir(cleanPath)
	for {
		if ruleSet := lookup(directory); ruleSet != nil {
			relativePath := utils.RootRelativePath(cleanPath, directory)
			if decision := ruleSet.Decide(relativePath, isDirectory); decision != DecisionNone {
				return decision
			}
		}
		if directory == stopDirectory || !isWithin(directory, stopDirectory) {
			return DecisionNone
		}
		parentDirectory := filepath.Dir(directory)
		if parentDirectory == directory {
			return DecisionNone
		}
		directory = parentDirectory
	}
}

// isWithin reports whether candidate equals base or lies beneath it.
func isWithin(candidate string, base string) bool {
	if candidate == base {
		return true
	}
	prefix := base
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(candidate, prefix)
}
