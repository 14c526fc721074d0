// Package commands contains the core logic for collecting a project context.
package commands

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/temirov/apc/internal/ignore"
	"github.com/temirov/apc/internal/types"
	"github.com/temirov/apc/internal/utils"
)

// ErrInvalidRoot reports a walk root that does not exist or is not a directory.
var ErrInvalidRoot = errors.New("invalid root directory")

const (
	errorAbsolutePathFormat  = "getting absolute path for %s: %w"
	errorInvalidRootFormat   = "%w: %s: %v"
	errorRootNotDirectory    = "%w: %s is not a directory"
	errorReadRootFormat      = "reading root directory %s: %w"
	warningReadDirectory     = "skipping unreadable directory"
	warningStatEntry         = "unable to stat entry"
	debugExcludedPath        = "excluded by ignore rules"
	debugSymlinkedDirectory  = "not following symbolic link to directory"
	infoCollectionSummaryMsg = "collected project context"
)

// Walker collects the visible directories and accepted files beneath a root.
type Walker struct {
	// IgnoreOptions configures the per-walk ignore.Store.
	IgnoreOptions ignore.Options
	// MaxFileSize is the largest accepted file size in bytes, inclusive.
	MaxFileSize int64
	// IncludeBinary admits binary and undecodable files with a placeholder body.
	IncludeBinary bool
	// Logger receives diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger
}

type walkState struct {
	store   *ignore.Store
	context *types.ProjectContext
	logger  *zap.Logger
}

// Collect walks rootPath parent-before-child in directory-name order and returns the
// resulting project context. Only an invalid root and ignore-rule compile errors are
// returned; per-entry failures are logged and skipped.
func (walker *Walker) Collect(rootPath string) (*types.ProjectContext, error) {
	logger := walker.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	absoluteRootPath, absolutePathError := filepath.Abs(rootPath)
	if absolutePathError != nil {
		return nil, fmt.Errorf(errorAbsolutePathFormat, rootPath, absolutePathError)
	}
	rootInfo, rootStatError := os.Stat(absoluteRootPath)
	if rootStatError != nil {
		return nil, fmt.Errorf(errorInvalidRootFormat, ErrInvalidRoot, rootPath, rootStatError)
	}
	if !rootInfo.IsDir() {
		return nil, fmt.Errorf(errorRootNotDirectory, ErrInvalidRoot, rootPath)
	}

	ignoreOptions := walker.IgnoreOptions
	if ignoreOptions.Logger == nil {
		ignoreOptions.Logger = logger
	}
	store, storeError := ignore.NewStore(absoluteRootPath, ignoreOptions)
	if storeError != nil {
		return nil, storeError
	}

	state := &walkState{
		store: store,
		context: &types.ProjectContext{
			RootPath: store.Root(),
			Tree:     types.NewDirectoryTree(),
		},
		logger: logger,
	}
	if walkError := walker.walkDirectory(state, store.Root()); walkError != nil {
		return nil, walkError
	}

	summary := &state.context.Summary
	summary.TotalDirectories = len(state.context.Directories)
	summary.TotalFiles = len(state.context.Files)
	logger.Info(infoCollectionSummaryMsg,
		zap.Int("files", summary.TotalFiles),
		zap.Int("directories", summary.TotalDirectories),
		zap.String("total_size", utils.FormatFileSize(summary.TotalBytes)),
		zap.Int("skipped_files", summary.SkippedFiles))
	return state.context, nil
}

// walkDirectory loads the rule sources of directory, then visits its entries in name
// order, descending into each admitted subdirectory before moving to the next entry.
func (walker *Walker) walkDirectory(state *walkState, directory string) error {
	if prepareError := state.store.Prepare(directory); prepareError != nil {
		return prepareError
	}

	directoryEntries, readDirectoryError := os.ReadDir(directory)
	if readDirectoryError != nil {
		if directory == state.store.Root() {
			return fmt.Errorf(errorReadRootFormat, directory, readDirectoryError)
		}
		state.logger.Warn(warningReadDirectory, zap.String("path", directory), zap.Error(readDirectoryError))
		return nil
	}

	for _, directoryEntry := range directoryEntries {
		entryPath := filepath.Join(directory, directoryEntry.Name())
		relativePath := utils.RootRelativePath(entryPath, state.store.Root())

		isDirectory := directoryEntry.IsDir()
		if directoryEntry.Type()&fs.ModeSymlink != 0 {
			targetInfo, targetError := os.Stat(entryPath)
			if targetError != nil {
				state.logger.Warn(warningStatEntry, zap.String("path", relativePath), zap.Error(targetError))
				continue
			}
			if targetInfo.IsDir() {
				state.logger.Debug(debugSymlinkedDirectory, zap.String("path", relativePath))
				continue
			}
		}

		if state.store.IsExcluded(entryPath, isDirectory) {
			state.logger.Debug(debugExcludedPath, zap.String("path", relativePath))
			continue
		}

		if isDirectory {
			state.context.Tree.AddDirectory(relativePath)
			state.context.Directories = append(state.context.Directories, relativePath)
			if walkError := walker.walkDirectory(state, entryPath); walkError != nil {
				return walkError
			}
			continue
		}

		record, accepted := inspectFile(entryPath, fileInspectionConfig{
			RelativePath:  relativePath,
			MaxFileSize:   walker.MaxFileSize,
			IncludeBinary: walker.IncludeBinary,
			Logger:        state.logger,
		})
		if !accepted {
			state.context.Summary.SkippedFiles++
			continue
		}
		state.context.Tree.AddFile(relativePath)
		state.context.Files = append(state.context.Files, record)
		state.context.Summary.TotalBytes += record.SizeBytes
	}
	return nil
}
