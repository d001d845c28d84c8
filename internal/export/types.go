// Package export renders a property's review report as PDF.
package export

import (
	"errors"
)

// Request contains parameters for an export operation.
type Request struct {
	PropertyID string
}

// Result contains the export output.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
