package nl2sql

import "context"

// Result carries the extracted statement together with the backend that
// produced it, so callers can attribute and log the translation.
type Result struct {
	SQL      string `json:"sql"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

type Translator interface {
	Translate(ctx context.Context, prompt Prompt) (Result, error)
}
