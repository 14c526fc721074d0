package output

import (
	"errors"
	"fmt"
	"io"

	"github.com/google/renameio"
	"go.uber.org/zap"

	"github.com/temirov/apc/internal/services/clipboard"
)

const (
	outputFilePermissions      = 0o644
	writtenConfirmationFormat  = "Project context written to: %s\n"
	errorWriteOutputFileFormat = "writing output file %s: %w"
	errorWriteStdoutFormat     = "writing output: %w"
	errorClipboardCopyFormat   = "copying output to clipboard: %w"
	clipboardServiceMissing    = "clipboard copy requested but no clipboard service is configured"
	infoClipboardCopied        = "copied project context to clipboard"
)

// Destination delivers rendered text to standard output or a file, and optionally
// to the clipboard.
type Destination struct {
	// OutputPath, when set, receives the text instead of Stdout. The file is replaced
	// atomically so readers never observe a partial write.
	OutputPath string
	Stdout     io.Writer
	// CopyToClipboard also places the text on the clipboard through Clipboard.
	CopyToClipboard bool
	Clipboard       clipboard.Copier
	Logger          *zap.Logger
}

// Deliver writes text to the configured destination. Standard output receives the text
// followed by a newline; a file receives the exact text and standard output receives a
// confirmation line.
func (destination Destination) Deliver(text string) error {
	logger := destination.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if destination.CopyToClipboard && destination.Clipboard == nil {
		return errors.New(clipboardServiceMissing)
	}

	if destination.OutputPath != "" {
		if writeError := renameio.WriteFile(destination.OutputPath, []byte(text), outputFilePermissions); writeError != nil {
			return fmt.Errorf(errorWriteOutputFileFormat, destination.OutputPath, writeError)
		}
		if _, printError := fmt.Fprintf(destination.Stdout, writtenConfirmationFormat, destination.OutputPath); printError != nil {
			return fmt.Errorf(errorWriteStdoutFormat, printError)
		}
	} else if _, printError := fmt.Fprintln(destination.Stdout, text); printError != nil {
		return fmt.Errorf(errorWriteStdoutFormat, printError)
	}

	if destination.CopyToClipboard {
		if copyError := destination.Clipboard.Copy(text); copyError != nil {
			return fmt.Errorf(errorClipboardCopyFormat, copyError)
		}
		logger.Info(infoClipboardCopied)
	}
	return nil
}
