// Package exporter implements the terminal side of the pipeline: writing each
// originator's stream to the filesystem in sequence order.
package exporter

import (
	"errors"
	"os"
	"path/filepath"
)

// A Sink writes exported envelope payloads to their final destination.
type Sink interface {
	// Write persists the payload of the envelope with the given ID.
	//
	// Writing the same ID again replaces the previous payload; re-export
	// after a crash is therefore safe.
	Write(id, data string) error
}

// DirectorySink writes each exported payload to its own file in a directory,
// named after the envelope ID.
type DirectorySink struct {
	// Dir is the directory files are written to. It is created on first
	// write if it does not exist.
	Dir string

	// FileMode is the permission mode of created files. If it is zero, 0644
	// is used.
	FileMode os.FileMode
}

// Write persists an exported payload.
func (s *DirectorySink) Write(id, data string) error {
	if id == "" {
		return errors.New("cannot export envelope with empty ID")
	}

	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return err
	}

	mode := s.FileMode
	if mode == 0 {
		mode = 0644
	}

	return os.WriteFile(
		filepath.Join(s.Dir, id),
		[]byte(data),
		mode,
	)
}
