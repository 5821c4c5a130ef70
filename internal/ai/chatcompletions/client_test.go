package chatcompletions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spigell/resource-matcher/internal/ai"
)

func TestGenerateSendsPromptAndReturnsContent(t *testing.T) {
	var got request
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Sure: {\"recommendations\":[]}"}}]}`))
	}))
	defer srv.Close()

	client := New(Config{URL: srv.URL, APIKey: " secret ", Model: "llama"})
	out, err := client.Generate(context.Background(), "  hello  ", ai.GenerationOptions{Temperature: 0.7, MaxTokens: 3000})
	require.NoError(t, err)

	assert.Equal(t, `Sure: {"recommendations":[]}`, out)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, "llama", got.Model)
	assert.InDelta(t, 0.7, got.Temperature, 0.0001)
	assert.Equal(t, 3000, got.MaxTokens)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	require.NotNil(t, got.Messages[0].Content)
	assert.Equal(t, "hello", *got.Messages[0].Content)
}

func TestGenerateWithoutAPIKeyOmitsAuthorization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	out, err := New(Config{URL: srv.URL}).Generate(context.Background(), "prompt", ai.GenerationOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestGenerateFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "non-success status",
			status: http.StatusBadGateway,
			body:   "upstream down",
			check: func(t *testing.T, err error) {
				var statusErr *StatusError
				require.ErrorAs(t, err, &statusErr)
				assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
				assert.Equal(t, "upstream down", statusErr.Body)
			},
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrMissingContent) },
		},
		{
			name:   "no message",
			status: http.StatusOK,
			body:   `{"choices":[{}]}`,
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrMissingContent) },
		},
		{
			name:   "no content",
			status: http.StatusOK,
			body:   `{"choices":[{"message":{"role":"assistant"}}]}`,
			check:  func(t *testing.T, err error) { assert.ErrorIs(t, err, ErrMissingContent) },
		},
		{
			name:   "error payload",
			status: http.StatusOK,
			body:   `{"error":{"message":"model overloaded"}}`,
			check:  func(t *testing.T, err error) { assert.ErrorContains(t, err, "model overloaded") },
		},
		{
			name:   "not json",
			status: http.StatusOK,
			body:   `<html>`,
			check:  func(t *testing.T, err error) { assert.ErrorContains(t, err, "decode response") },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := New(Config{URL: srv.URL}).Generate(context.Background(), "prompt", ai.GenerationOptions{})
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestGenerateRespectsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(Config{URL: srv.URL}).Generate(ctx, "prompt", ai.GenerationOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "expected deadline error, got %v", err)
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	_, err := New(Config{}).Generate(context.Background(), "  ", ai.GenerationOptions{})
	require.Error(t, err)
}

func TestDefaults(t *testing.T) {
	client := New(Config{})
	assert.Equal(t, DefaultURL, client.url)
	assert.Equal(t, defaultTimeout, client.httpClient.Timeout)
	assert.Equal(t, "default", client.Model())
}
