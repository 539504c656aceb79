package pipeline

import (
	"errors"
	"fmt"
)

// Stage names the pipeline step where a failure originated.
type Stage string

const (
	StagePrompt    Stage = "prompt"
	StageTranslate Stage = "translate"
	StageValidate  Stage = "validate"
	StageExecute   Stage = "execute"
)

// Kind is the machine-readable failure category: callers branch on it,
// never on message text.
type Kind string

const (
	KindInvalidInput      Kind = "invalid_input"
	KindTranslationFailed Kind = "translation_failed"
	KindUnsafeStatement   Kind = "unsafe_statement"
	KindConnectionFailed  Kind = "connection_failed"
	KindExecutionFailed   Kind = "execution_failed"
	KindTimeout           Kind = "timeout"
)

// Error tags a failure with its originating stage and kind. Message is
// already credential-redacted; Err preserves the cause chain for errors.Is.
type Error struct {
	Stage   Stage
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", e.Stage, e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind, false for errors born outside the
// pipeline.
func KindOf(err error) (Kind, bool) {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Kind, true
	}
	return "", false
}

// StageOf extracts the originating stage.
func StageOf(err error) (Stage, bool) {
	var pErr *Error
	if errors.As(err, &pErr) {
		return pErr.Stage, true
	}
	return "", false
}

// Retryable reports whether the caller may reasonably retry the request
// unchanged. Input and policy failures need a different question, not a
// retry.
func Retryable(err error) bool {
	kind, ok := KindOf(err)
	if !ok {
		return false
	}
	switch kind {
	case KindTranslationFailed, KindConnectionFailed, KindTimeout:
		return true
	}
	return false
}
