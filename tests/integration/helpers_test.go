//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

// API endpoints
const (
	chatPath     = "/api/chat"
	generatePath = "/api/generate"
	healthPath   = "/healthz"
)

// sendJSONRequest sends a JSON POST request with an explicit request id and
// returns the response.
func sendJSONRequest(t *testing.T, url, requestID string, payload interface{}) *http.Response {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err, "failed to marshal request payload")

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	require.NoError(t, err, "failed to create request")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "failed to send request")
	return resp
}

// drain reads and closes the response body.
func drain(t *testing.T, resp *http.Response) []byte {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return body
}

func chatPayload(model, content string, stream bool) map[string]interface{} {
	return map[string]interface{}{
		"model":    model,
		"messages": []map[string]string{{"role": "user", "content": content}},
		"stream":   stream,
	}
}
