package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRewrite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))

		var req messageRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Len(t, req.Messages, 1)
		assert.Equal(t, "jake 8th 60 owes 20", req.Messages[0].Content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"  sold 3.5g to jake for $60, owes 20\n"}]}`))
	}))
	defer srv.Close()

	got, err := NewClient("key", srv.URL, time.Second).Rewrite(context.Background(), "jake 8th 60 owes 20")
	require.NoError(t, err)
	assert.Equal(t, "sold 3.5g to jake for $60, owes 20", got)
}

func TestRewrite_Errors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{"api error", http.StatusTooManyRequests, `{"type":"error"}`},
		{"no content", http.StatusOK, `{"content":[]}`},
		{"blank text", http.StatusOK, `{"content":[{"text":"  "}]}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			_, err := NewClient("key", srv.URL, time.Second).Rewrite(context.Background(), "x")
			assert.Error(t, err)
		})
	}
}
