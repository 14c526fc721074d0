// Package clipboard provides access to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

// ErrUnavailable reports that no clipboard utility is available on this system.
var ErrUnavailable = errors.New("system clipboard unavailable")

// Copier copies textual data to the system clipboard.
type Copier interface {
	Copy(text string) error
}

// Service implements Copier using github.com/atotto/clipboard.
type Service struct {
	writeAll    func(string) error
	unsupported func() bool
}

// NewService constructs a clipboard service backed by the platform clipboard.
func NewService() *Service {
	return &Service{
		writeAll:    clipboard.WriteAll,
		unsupported: func() bool { return clipboard.Unsupported },
	}
}

// Copy replaces the clipboard contents with text.
func (service *Service) Copy(text string) error {
	if service.unsupported() {
		return ErrUnavailable
	}
	if writeError := service.writeAll(text); writeError != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, writeError)
	}
	return nil
}

var _ Copier = (*Service)(nil)
