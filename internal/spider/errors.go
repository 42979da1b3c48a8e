package spider

import (
	"fmt"

	"github.com/jonathan/simplejsonspider/internal/detect"
)

// NotJSONError is returned by the strict JSON entry points when the payload
// was classified as something other than JSON.
type NotJSONError struct {
	Detected detect.Type
	Cause    error
}

func (e *NotJSONError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("expected JSON content but got %s: %v", e.Detected, e.Cause)
	}
	return fmt.Sprintf("expected JSON content but got %s", e.Detected)
}

func (e *NotJSONError) Unwrap() error {
	return e.Cause
}
