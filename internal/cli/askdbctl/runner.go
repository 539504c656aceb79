package askdbctl

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
	Stdout     io.Writer
	Stderr     io.Writer
}

func Run(ctx context.Context, args []string, defaults Options) int {
	stdout := defaults.Stdout
	if stdout == nil {
		stdout = io.Discard
	}
	stderr := defaults.Stderr
	if stderr == nil {
		stderr = io.Discard
	}

	fs := flag.NewFlagSet("askdbctl", flag.ContinueOnError)
	fs.SetOutput(stderr)

	baseURL := fs.String("base-url", firstNonEmpty(defaults.BaseURL, "http://localhost:8080"), "askdb API base URL")
	apiKey := fs.String("api-key", defaults.APIKey, "API key for authenticated requests")
	timeout := fs.Duration("timeout", durationOr(defaults.Timeout, 30*time.Second), "HTTP timeout (e.g. 30s)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() < 1 {
		writeUsage(stderr)
		return 2
	}

	client := defaults.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: *timeout}
	}

	command := strings.TrimSpace(fs.Arg(0))
	rest := fs.Args()[1:]

	switch command {
	case "health":
		return runGet(ctx, client, *baseURL, *apiKey, "/v1/health", stdout, stderr)
	case "ready":
		return runGet(ctx, client, *baseURL, *apiKey, "/v1/ready", stdout, stderr)
	case "schema":
		return runGet(ctx, client, *baseURL, *apiKey, "/v1/schema", stdout, stderr)
	case "translate":
		question := strings.TrimSpace(strings.Join(rest, " "))
		if question == "" {
			_, _ = fmt.Fprintln(stderr, "translate requires a question")
			return 2
		}
		return runTranslate(ctx, client, *baseURL, *apiKey, question, stdout, stderr)
	case "ask":
		return runAsk(ctx, client, *baseURL, *apiKey, rest, stdout, stderr)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		writeUsage(stderr)
		return 2
	}
}

func runGet(ctx context.Context, client *http.Client, baseURL, apiKey, path string, stdout, stderr io.Writer) int {
	endpoint := strings.TrimRight(baseURL, "/") + path
	code, _, responseBody, err := doRequest(ctx, client, http.MethodGet, endpoint, apiKey, nil)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}
	return writeResponse(code, responseBody, stdout, stderr)
}

func runTranslate(ctx context.Context, client *http.Client, baseURL, apiKey, question string, stdout, stderr io.Writer) int {
	payload, err := json.Marshal(map[string]any{"question": question})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "encode request: %v\n", err)
		return 1
	}
	endpoint := strings.TrimRight(baseURL, "/") + "/v1/translate"
	code, _, responseBody, err := doRequest(ctx, client, http.MethodPost, endpoint, apiKey, payload)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}
	return writeResponse(code, responseBody, stdout, stderr)
}

func runAsk(ctx context.Context, client *http.Client, baseURL, apiKey string, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	fs.SetOutput(stderr)
	preview := fs.Bool("preview", false, "return the generated SQL without executing it")
	format := fs.String("format", "", "response format: json, csv, or parquet")
	archive := fs.Bool("archive", false, "store the encoded result in the archive")
	out := fs.String("out", "", "write csv or parquet output to this file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		_, _ = fmt.Fprintln(stderr, "ask requires a question")
		return 2
	}

	request := map[string]any{"question": question}
	if *preview {
		request["preview_sql"] = true
	}
	if strings.TrimSpace(*format) != "" {
		request["format"] = strings.TrimSpace(*format)
	}
	if *archive {
		request["archive"] = true
	}
	payload, err := json.Marshal(request)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "encode request: %v\n", err)
		return 1
	}

	endpoint := strings.TrimRight(baseURL, "/") + "/v1/ask"
	code, header, responseBody, err := doRequest(ctx, client, http.MethodPost, endpoint, apiKey, payload)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "request failed: %v\n", err)
		return 1
	}
	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}

	if key := header.Get("X-Archive-Key"); key != "" {
		_, _ = fmt.Fprintf(stderr, "archived as %s\n", key)
	}

	if !strings.HasPrefix(header.Get("Content-Type"), "application/json") {
		if *out != "" {
			if err := os.WriteFile(*out, responseBody, 0o644); err != nil {
				_, _ = fmt.Fprintf(stderr, "write %s: %v\n", *out, err)
				return 1
			}
			_, _ = fmt.Fprintf(stdout, "wrote %s (%d bytes)\n", *out, len(responseBody))
			return 0
		}
		_, _ = stdout.Write(responseBody)
		return 0
	}

	return writeResponse(code, responseBody, stdout, stderr)
}

func writeResponse(code int, responseBody []byte, stdout, stderr io.Writer) int {
	if code >= 400 {
		_, _ = fmt.Fprintf(stderr, "http %d: %s\n", code, strings.TrimSpace(string(responseBody)))
		return 1
	}
	if pretty, ok := prettyJSON(responseBody); ok {
		_, _ = fmt.Fprintln(stdout, pretty)
		return 0
	}
	if len(responseBody) > 0 {
		_, _ = fmt.Fprintln(stdout, string(responseBody))
	}
	return 0
}

func doRequest(ctx context.Context, client *http.Client, method, url, apiKey string, payload []byte) (int, http.Header, []byte, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return 0, nil, nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(apiKey) != "" {
		req.Header.Set("X-API-Key", strings.TrimSpace(apiKey))
	}

	resp, err := client.Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, err
	}
	return resp.StatusCode, resp.Header, responseBody, nil
}

func prettyJSON(raw []byte) (string, bool) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return "", false
	}
	var anyValue any
	if err := json.Unmarshal(raw, &anyValue); err != nil {
		return "", false
	}
	formatted, err := json.MarshalIndent(anyValue, "", "  ")
	if err != nil {
		return "", false
	}
	return string(formatted), true
}

func writeUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "usage: askdbctl [flags] <command> [question]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "commands:")
	_, _ = fmt.Fprintln(w, "  health      GET /v1/health")
	_, _ = fmt.Fprintln(w, "  ready       GET /v1/ready")
	_, _ = fmt.Fprintln(w, "  schema      GET /v1/schema")
	_, _ = fmt.Fprintln(w, "  translate   POST /v1/translate with the remaining args as the question")
	_, _ = fmt.Fprintln(w, "  ask         POST /v1/ask with the remaining args as the question")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "ask flags:")
	_, _ = fmt.Fprintln(w, "  -preview    return the generated SQL without executing it")
	_, _ = fmt.Fprintln(w, "  -format     response format: json, csv, or parquet")
	_, _ = fmt.Fprintln(w, "  -archive    store the encoded result in the archive")
	_, _ = fmt.Fprintln(w, "  -out        write csv or parquet output to this file")
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return strings.TrimSpace(a)
	}
	return b
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
