package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"agentbridge/internal/backends"
	"agentbridge/internal/core"
	"agentbridge/internal/httpclient"
)

// DefaultAPIBaseURL is the public Generative Language endpoint.
const DefaultAPIBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// APIConfig configures the remote API variant.
type APIConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	// HTTPClient overrides the shared client; nil uses httpclient.NewHTTPClient.
	HTTPClient *http.Client
}

// APIInvoker calls models/{model}:generateContent once per call.
type APIInvoker struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *http.Client
}

var _ core.Invoker = (*APIInvoker)(nil)

// NewAPI creates the remote API variant of the gemini invoker.
func NewAPI(cfg APIConfig) *APIInvoker {
	client := cfg.HTTPClient
	if client == nil {
		client = httpclient.NewHTTPClient(nil)
	}
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	return &APIInvoker{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(cfg.APIKey),
		timeout: cfg.Timeout,
		client:  client,
	}
}

// Name implements core.Invoker.
func (i *APIInvoker) Name() string { return Name }

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Invoke implements core.Invoker.
func (i *APIInvoker) Invoke(ctx context.Context, prompt, resolvedModel string) (*core.BridgeResult, error) {
	if i.apiKey == "" {
		return nil, core.NewMissingCredentialError(Name, "Gemini auth mode is 'api' but GEMINI_API_KEY is not set")
	}

	limit := backends.EffectiveTimeout(ctx, i.timeout)
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return nil, core.NewBackendExecutionError(Name, "failed to encode gemini request", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s",
		i.baseURL, url.PathEscape(resolvedModel), url.QueryEscape(i.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, core.NewBackendExecutionError(Name, "failed to build gemini request", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, transportError(ctx, err, limit)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(ctx, err, limit)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, core.NewBackendExecutionError(Name,
			fmt.Sprintf("gemini api call failed (%d): %s", resp.StatusCode, string(raw)), nil)
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, core.NewBackendExecutionError(Name,
			fmt.Sprintf("gemini api returned invalid JSON: %s", string(raw)), err)
	}
	if len(parsed.Candidates) == 0 {
		return nil, core.NewBackendEmptyResponseError(Name,
			fmt.Sprintf("gemini api returned no candidates: %s", string(raw)))
	}

	var texts []string
	for _, c := range parsed.Candidates {
		for _, p := range c.Content.Parts {
			if p.Text != "" {
				texts = append(texts, p.Text)
			}
		}
	}
	answer := strings.TrimSpace(strings.Join(texts, "\n"))
	if answer == "" {
		return nil, core.NewBackendEmptyResponseError(Name,
			fmt.Sprintf("gemini api returned empty text: %s", string(raw)))
	}
	return &core.BridgeResult{Text: answer}, nil
}

// transportError classifies a failed round trip. The *url.Error wrapper is
// stripped so the API key in the query string never reaches a client.
func transportError(ctx context.Context, err error, limit time.Duration) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return core.NewBackendTimeoutError(Name, fmt.Sprintf("%s timed out after %s", Name, limit), ctx.Err())
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	return core.NewBackendExecutionError(Name, fmt.Sprintf("gemini api call failed: %v", err), err)
}
