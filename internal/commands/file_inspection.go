package commands

import (
	"os"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/temirov/apc/internal/types"
	"github.com/temirov/apc/internal/utils"
)

const (
	warningStatPathMessage     = "unable to stat path"
	warningFileReadMessage     = "unable to read file"
	debugOversizedFileMessage  = "skipping file larger than the size limit"
	debugBinaryFileMessage     = "skipping binary file"
	debugUndecodableMessage    = "skipping file that is not valid UTF-8"
	debugNonRegularFileMessage = "skipping non-regular file"
)

type fileInspectionConfig struct {
	RelativePath  string
	MaxFileSize   int64
	IncludeBinary bool
	Logger        *zap.Logger
}

// inspectFile applies the acceptance filter to one candidate file. The size limit is
// checked before any content is read; files exactly at the limit are accepted.
//
// #nosec G304
func inspectFile(filePath string, config fileInspectionConfig) (types.FileRecord, bool) {
	logger := config.Logger.With(zap.String("path", config.RelativePath))

	fileInfo, statError := os.Stat(filePath)
	if statError != nil {
		logger.Warn(warningStatPathMessage, zap.Error(statError))
		return types.FileRecord{}, false
	}
	if !fileInfo.Mode().IsRegular() {
		logger.Debug(debugNonRegularFileMessage)
		return types.FileRecord{}, false
	}
	if fileInfo.Size() > config.MaxFileSize {
		logger.Debug(debugOversizedFileMessage,
			zap.String("size", utils.FormatFileSize(fileInfo.Size())),
			zap.String("limit", utils.FormatFileSize(config.MaxFileSize)))
		return types.FileRecord{}, false
	}

	fileBytes, readError := os.ReadFile(filePath)
	if readError != nil {
		logger.Warn(warningFileReadMessage, zap.Error(readError))
		return types.FileRecord{}, false
	}

	record := types.FileRecord{
		RelativePath: config.RelativePath,
		SizeBytes:    int64(len(fileBytes)),
	}
	switch {
	case utils.IsBinary(fileBytes):
		if !config.IncludeBinary {
			logger.Debug(debugBinaryFileMessage)
			return types.FileRecord{}, false
		}
		record.IsBinary = true
		record.Content = utils.BinaryContentPlaceholder
	case !utf8.Valid(fileBytes):
		if !config.IncludeBinary {
			logger.Debug(debugUndecodableMessage)
			return types.FileRecord{}, false
		}
		record.IsBinary = true
		record.Content = utils.BinaryContentPlaceholder
	default:
		record.Content = string(fileBytes)
	}
	return record, true
}
