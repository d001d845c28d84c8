// Package app exposes the property review workflow over HTTP: board and
// field editing, the section review cycle, comment submission, archive
// history, search and report export.
package app

import "fmt"

// DomainError carries the HTTP status and stable machine code a failed
// operation maps to. Submit validation failures put the per-section
// breakdown in Details.
type DomainError struct {
	Status  int
	Code    string
	Message string
	Details any
}

func (e *DomainError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func domainError(status int, code, message string, details any) *DomainError {
	return &DomainError{
		Status:  status,
		Code:    code,
		Message: message,
		Details: details,
	}
}
