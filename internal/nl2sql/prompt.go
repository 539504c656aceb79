package nl2sql

import (
	"errors"
	"strings"
)

// ErrEmptyQuestion reports a question that is empty after trimming.
var ErrEmptyQuestion = errors.New("question is required")

const systemInstruction = "You are a specialized SQL query generator. " +
	"Convert the user's natural language question into a single valid PostgreSQL SQL query."

const promptRules = `Rules:
1. Generate ONLY the SQL query without any additional text, explanations, or markdown.
2. Ensure the query is valid PostgreSQL syntax.
3. Use JOINs where appropriate when querying multiple tables.
4. Use column names exactly as they appear in the schema.
5. Keep the query efficient and focused on answering the specific question.
6. When appropriate, include ORDER BY, GROUP BY, or LIMIT clauses to make the results more useful.
7. Do not include any SQL comments in the query.
8. Generate read-only queries only; never modify data or schema.`

// Prompt is the complete instruction sent to a translation backend. Chat
// style backends send System and User as separate messages; single-prompt
// backends send Text().
type Prompt struct {
	System string
	User   string
}

func (p Prompt) Text() string {
	return p.System + "\n\n" + p.User
}

// BuildPrompt embeds the question and optional schema hint into the fixed
// instruction template. Pure: identical inputs produce identical output.
func BuildPrompt(question, schemaHint string) (Prompt, error) {
	trimmed := strings.TrimSpace(question)
	if trimmed == "" {
		return Prompt{}, ErrEmptyQuestion
	}

	var user strings.Builder
	if hint := strings.TrimSpace(schemaHint); hint != "" {
		user.WriteString("Database Schema:\n")
		user.WriteString(hint)
		user.WriteString("\n\n")
	}
	user.WriteString("Natural Language Question:\n")
	user.WriteString(trimmed)
	user.WriteString("\n\n")
	user.WriteString(promptRules)
	user.WriteString("\n\nSQL Query:")

	return Prompt{System: systemInstruction, User: user.String()}, nil
}
