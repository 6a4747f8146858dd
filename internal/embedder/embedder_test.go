package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProviderIsDeterministic(t *testing.T) {
	l, err := NewLocalProvider(nil)
	require.NoError(t, err)

	a, err := l.Embed(context.Background(), "package main")
	require.NoError(t, err)
	b, err := l.Embed(context.Background(), "package main")
	require.NoError(t, err)
	c, err := l.Embed(context.Background(), "package other")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, LocalDimension)
}

func TestLocalProviderRejectsEmptyContent(t *testing.T) {
	l, err := NewLocalProvider(nil)
	require.NoError(t, err)

	_, err = l.Embed(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestCacheReturnsCopies(t *testing.T) {
	c := NewCache(10)
	c.Set("h", []float32{1, 2, 3})

	got, ok := c.Get("h")
	require.True(t, ok)
	got[0] = 99

	again, ok := c.Get("h")
	require.True(t, ok)
	assert.Equal(t, float32(1), again[0])
}

func TestCacheMiss(t *testing.T) {
	c := NewCache(10)
	_, ok := c.Get("missing")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestNewExplicitConfig(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  error
	}{
		{name: "local", cfg: Config{Provider: "local"}, wantName: ProviderLocal},
		{name: "default is local", cfg: Config{}, wantName: ProviderLocal},
		{name: "openai", cfg: Config{Provider: "openai", APIKey: "sk-test"}, wantName: ProviderOpenAI},
		{name: "openai without key", cfg: Config{Provider: "openai"}, wantErr: ErrNoProviderEnabled},
		{name: "unknown", cfg: Config{Provider: "quantum"}, wantErr: ErrUnknownProvider},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			emb, err := New(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, emb.Name())
			assert.NoError(t, emb.Close())
		})
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Setenv(EnvProvider, "local")
	t.Setenv(EnvOpenAIAPIKey, "")

	emb, err := NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Name())

	t.Setenv(EnvProvider, "")
	t.Setenv(EnvOpenAIAPIKey, "sk-test")

	emb, err = NewFromEnv()
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, emb.Name())
}

func TestOpenAIProviderParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": []map[string]interface{}{
				{"embedding": []float32{0.1, 0.2, 0.3}},
			},
		})
	}))
	defer srv.Close()

	o, err := NewOpenAIProvider("sk-test", nil)
	require.NoError(t, err)

	// Point the provider at the test server.
	o.endpoint = srv.URL
	o.httpClient = srv.Client()

	vector, err := o.Embed(context.Background(), "package main")
	require.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vector)
}

func TestOpenAIProviderRetriesThenFails(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	o, err := NewOpenAIProvider("sk-test", nil)
	require.NoError(t, err)
	o.endpoint = srv.URL
	o.httpClient = srv.Client()

	_, err = o.Embed(context.Background(), "package main")
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, maxRetries, calls)
}

func TestContentHashStable(t *testing.T) {
	assert.Equal(t, ContentHash("abc"), ContentHash("abc"))
	assert.NotEqual(t, ContentHash("abc"), ContentHash("abd"))
	assert.Len(t, ContentHash("abc"), 64)
}
