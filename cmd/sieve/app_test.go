package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sieve/internal/config"
	"sieve/internal/logger"
)

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
broker:
  type: none
server:
  max_body_bytes: 2048
`), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func TestAppWithoutDatabaseOrBroker(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	app := NewApp(loadTestConfig(t), logger.NopLogger())
	require.NoError(t, app.Initialize(ctx))
	defer app.Shutdown(context.Background())

	assert.False(t, app.StreamingEnabled())
	assert.Nil(t, app.Producer)
	assert.Nil(t, app.Consumer)

	serve := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		app.router.ServeHTTP(w, req)
		return w
	}

	w := serve(http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = serve(http.MethodPost, "/api/v1/filter", `{
		"messages": [{"name": "alice"}, {"name": "bob"}],
		"filter": {"type": "string", "field": "name", "operation": "eq", "value": "bob"}
	}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Messages []map[string]any `json:"messages"`
		Matched  int              `json:"matched"`
		Total    int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Matched)
	assert.Equal(t, 2, resp.Total)
	assert.Equal(t, "bob", resp.Messages[0]["name"])

	w = serve(http.MethodGet, "/api/v1/filters", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = serve(http.MethodPost, "/api/v1/filter", `{"messages": [], "pad": "`+strings.Repeat("x", 4096)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)

	w = serve(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "sieve_messages_evaluated_total")
}
