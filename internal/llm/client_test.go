package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractFields(t *testing.T) {
	t.Parallel()

	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		_ = json.NewEncoder(w).Encode(generateResponse{
			Response: `{"summary":"A short summary.","keywords":["go","crawling"],"language":"en"}`,
		})
	}))
	defer srv.Close()

	client := New(Config{Endpoint: srv.URL, Model: "llama3"})
	fields, err := client.ExtractFields(context.Background(), "Some article content.")
	require.NoError(t, err)

	require.Equal(t, "A short summary.", fields.Summary)
	require.Equal(t, []string{"go", "crawling"}, fields.Keywords)
	require.Equal(t, "en", fields.Language)

	require.Equal(t, "llama3", got.Model)
	require.Equal(t, "json", got.Format)
	require.False(t, got.Stream)
	require.Contains(t, got.Prompt, "Some article content.")
}

func TestExtractFieldsTruncatesLongContent(t *testing.T) {
	t.Parallel()

	var promptLen int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		promptLen = len(req.Prompt)
		_ = json.NewEncoder(w).Encode(generateResponse{Response: `{}`})
	}))
	defer srv.Close()

	client := New(Config{Endpoint: srv.URL})
	_, err := client.ExtractFields(context.Background(), strings.Repeat("a", 100000))
	require.NoError(t, err)
	require.Less(t, promptLen, 10000)
}

func TestExtractFieldsErrors(t *testing.T) {
	t.Parallel()

	t.Run("unconfigured endpoint", func(t *testing.T) {
		t.Parallel()
		_, err := New(Config{}).ExtractFields(context.Background(), "text")
		require.Error(t, err)
	})

	t.Run("non-200 status", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()
		_, err := New(Config{Endpoint: srv.URL}).ExtractFields(context.Background(), "text")
		require.Error(t, err)
		require.Contains(t, err.Error(), "503")
	})

	t.Run("malformed model output", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_ = json.NewEncoder(w).Encode(generateResponse{Response: "not json at all"})
		}))
		defer srv.Close()
		_, err := New(Config{Endpoint: srv.URL}).ExtractFields(context.Background(), "text")
		require.Error(t, err)
	})

	t.Run("unreachable server", func(t *testing.T) {
		t.Parallel()
		_, err := New(Config{Endpoint: "http://127.0.0.1:1/generate"}).ExtractFields(context.Background(), "text")
		require.Error(t, err)
	})
}
