// Package pipeline composes prompt construction, translation, the safety
// screen, and execution into the one request path this service exposes.
// Every invocation is independent: no caches, no retries, no state carried
// between calls.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/redact"
	"github.com/askdb/askdb/internal/safety"
	"github.com/askdb/askdb/internal/schema"
)

// Outcome is a completed run: the statement that was executed, which
// backend produced it, and the rows the database returned.
type Outcome struct {
	SQL      string
	Provider string
	Model    string
	Result   query.Result
}

// Pipeline wires the stages together. Schema is optional: when nil, prompts
// are built without a schema hint. All fields are read-only after
// construction, so one Pipeline serves concurrent requests.
type Pipeline struct {
	Translator nl2sql.Translator
	Executor   query.Executor
	Schema     schema.Inspector
	Policy     safety.Policy
	Provider   string
	Logger     *slog.Logger
}

// Ask runs the full pipeline: prompt, translate, validate, execute. Any
// failure comes back as a *Error tagged with its stage and kind.
func (p *Pipeline) Ask(ctx context.Context, question string) (Outcome, error) {
	translated, err := p.translate(ctx, question)
	if err != nil {
		return Outcome{}, err
	}

	start := time.Now()
	result, err := p.Executor.Execute(ctx, query.Request{SQL: translated.SQL})
	observability.ObserveQuery(result.RowCount(), time.Since(start), err)
	if err != nil {
		return Outcome{}, p.fail(StageExecute, classifyExecute(err), err)
	}

	return Outcome{
		SQL:      translated.SQL,
		Provider: translated.Provider,
		Model:    translated.Model,
		Result:   result,
	}, nil
}

// TranslateOnly runs prompt, translate, and the safety screen without
// touching the database. This is the preview-SQL path.
func (p *Pipeline) TranslateOnly(ctx context.Context, question string) (nl2sql.Result, error) {
	return p.translate(ctx, question)
}

func (p *Pipeline) translate(ctx context.Context, question string) (nl2sql.Result, error) {
	prompt, err := nl2sql.BuildPrompt(question, p.schemaHint(ctx))
	if err != nil {
		return nl2sql.Result{}, p.fail(StagePrompt, KindInvalidInput, err)
	}

	start := time.Now()
	result, err := p.Translator.Translate(ctx, prompt)
	observability.ObserveTranslation(p.providerLabel(), time.Since(start), err)
	if err != nil {
		return nl2sql.Result{}, p.fail(StageTranslate, classifyTranslate(err), err)
	}

	if err := p.Policy.Check(result.SQL); err != nil {
		return nl2sql.Result{}, p.fail(StageValidate, KindUnsafeStatement, err)
	}
	return result, nil
}

// schemaHint fetches the live schema for the prompt. Introspection failures
// degrade to an empty hint rather than failing the request; the model just
// works without table context.
func (p *Pipeline) schemaHint(ctx context.Context) string {
	if p.Schema == nil {
		return ""
	}
	tables, err := p.Schema.Tables(ctx)
	if err != nil {
		if p.Logger != nil {
			p.Logger.WarnContext(ctx, "schema introspection failed, continuing without hint",
				slog.String("error", redact.Error(err)),
			)
		}
		return ""
	}
	return schema.FormatHint(tables)
}

func (p *Pipeline) fail(stage Stage, kind Kind, err error) error {
	observability.ObservePipelineFailure(string(stage), string(kind))
	return &Error{Stage: stage, Kind: kind, Message: redact.Error(err), Err: err}
}

func (p *Pipeline) providerLabel() string {
	if p.Provider != "" {
		return p.Provider
	}
	return "unknown"
}

func classifyTranslate(err error) Kind {
	if isTimeout(err) {
		return KindTimeout
	}
	return KindTranslationFailed
}

func classifyExecute(err error) Kind {
	switch {
	case errors.Is(err, query.ErrConnection):
		return KindConnectionFailed
	case errors.Is(err, query.ErrTimeout) || isTimeout(err):
		return KindTimeout
	default:
		return KindExecutionFailed
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
