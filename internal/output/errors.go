// Package output turns a fetched payload into the path and body that get
// written to storage.
package output

import "fmt"

// MissingTemplateKeyError is returned when the filename template names a field
// the payload does not have.
type MissingTemplateKeyError struct {
	Key string
}

func (e *MissingTemplateKeyError) Error() string {
	return fmt.Sprintf("key '%s' not found in content for filename template", e.Key)
}

// TemplateFormatError describes a template that could not be applied for any
// reason other than a missing key. Resolve recovers from it by using
// DefaultBaseName.
type TemplateFormatError struct {
	Template string
	Message  string
	Cause    error
}

func (e *TemplateFormatError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("template error in %q: %s: %v", e.Template, e.Message, e.Cause)
	}
	return fmt.Sprintf("template error in %q: %s", e.Template, e.Message)
}

func (e *TemplateFormatError) Unwrap() error {
	return e.Cause
}
