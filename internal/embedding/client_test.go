package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curation-service/internal/apperr"
)

func TestClient_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req embeddingsRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "text-embedding-3-small", req.Model)
		assert.Equal(t, []string{"stolen bike"}, req.Input)

		_, _ = w.Write([]byte(`{"data":[{"index":0,"embedding":[0.5,-0.25,1]}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL+"/v1/", "sk-test", "text-embedding-3-small", srv.Client())
	vec, err := c.Embed(context.Background(), "stolen bike")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -0.25, 1}, vec)
}

func TestClient_Embed_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":"slow down"}`, true},
		{"server error", http.StatusBadGateway, `oops`, true},
		{"bad key", http.StatusUnauthorized, `{"error":"invalid key"}`, false},
		{"empty data", http.StatusOK, `{"data":[]}`, false},
		{"malformed", http.StatusOK, `{"data":`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := New(srv.URL, "sk-test", "m", srv.Client()).Embed(context.Background(), "x")
			require.ErrorIs(t, err, apperr.ErrUpstream)
			assert.Equal(t, tt.transient, apperr.IsTransient(err))
		})
	}
}

func TestNew_WithoutKey(t *testing.T) {
	assert.Nil(t, New("https://api.openai.com/v1", "", "m", nil))
}
