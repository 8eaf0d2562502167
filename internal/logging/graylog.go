package logging

import (
	"fmt"
	"io"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGraylogWriter returns a writer that ships each write as one GELF
// message over UDP to addr.
func NewGraylogWriter(addr string) (io.WriteCloser, error) {
	w, err := gelf.NewWriter(addr)
	if err != nil {
		return nil, fmt.Errorf("failed to create GELF writer for %s: %w", addr, err)
	}
	w.Facility = InstrumentationName
	return w, nil
}
