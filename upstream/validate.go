package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ValidationError is a payload shape mismatch detected before externally
// sourced data leaves the service boundary. It is never retried and never
// silently coerced.
type ValidationError struct {
	// Resource names the payload being validated (e.g., "invoice").
	Resource string

	// Err is the underlying decode or required-field failure.
	Err error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s payload: %v", e.Resource, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// Validatable lets resource types declare their required fields. Decode and
// DecodeStrict run Validate after a successful unmarshal.
type Validatable interface {
	Validate() error
}

// DecodeStrict decodes an envelope payload, rejecting unknown fields so that
// upstream shape drift surfaces as a detectable failure instead of untyped
// data propagating to the agent. Envelopes enumerate their keys exhaustively;
// row payloads use Decode instead.
func DecodeStrict(data []byte, resource string, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return &ValidationError{Resource: resource, Err: err}
	}
	return validate(resource, v)
}

// Decode decodes a row payload into its typed snapshot. Unknown row fields
// are stripped by the decode; required fields are still enforced through
// Validate.
func Decode(data []byte, resource string, v any) error {
	if err := json.Unmarshal(data, v); err != nil {
		return &ValidationError{Resource: resource, Err: err}
	}
	return validate(resource, v)
}

func validate(resource string, v any) error {
	if val, ok := v.(Validatable); ok {
		if err := val.Validate(); err != nil {
			return &ValidationError{Resource: resource, Err: err}
		}
	}
	return nil
}
