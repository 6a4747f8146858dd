package embedder

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider configuration
const (
	ProviderOpenAI = "openai"
	ProviderLocal  = "local"

	DefaultOpenAIModel = "text-embedding-3-small"

	OpenAIDimension = 1536
	LocalDimension  = 384

	openAIEndpoint = "https://api.openai.com/v1/embeddings"
)

// OpenAIProvider implements Embedder using the OpenAI embeddings API.
type OpenAIProvider struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
	cache      *Cache
}

// NewOpenAIProvider creates an OpenAI embedder. The cache may be nil.
func NewOpenAIProvider(apiKey string, cache *Cache) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvOpenAIAPIKey)
	}
	return &OpenAIProvider{
		apiKey:   apiKey,
		model:    DefaultOpenAIModel,
		endpoint: openAIEndpoint,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		cache: cache,
	}, nil
}

// Embed generates an embedding for content, consulting the cache first.
func (o *OpenAIProvider) Embed(ctx context.Context, content string) ([]float32, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}

	hash := ContentHash(content)
	if o.cache != nil {
		if v, ok := o.cache.Get(hash); ok {
			return v, nil
		}
	}

	vector, err := retryWithBackoff(ctx, func() ([]float32, error) {
		return o.callAPI(ctx, content)
	})
	if err != nil {
		return nil, fmt.Errorf("%w after %d retries: %v", ErrProviderFailed, maxRetries, err)
	}

	if o.cache != nil {
		o.cache.Set(hash, vector)
	}
	return vector, nil
}

func (o *OpenAIProvider) callAPI(ctx context.Context, content string) ([]float32, error) {
	body, err := json.Marshal(map[string]interface{}{
		"input": content,
		"model": o.model,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("api error %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(apiResp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	return apiResp.Data[0].Embedding, nil
}

// Dimension returns the embedding dimension.
func (o *OpenAIProvider) Dimension() int { return OpenAIDimension }

// Name returns the provider name.
func (o *OpenAIProvider) Name() string { return ProviderOpenAI }

// Close releases idle HTTP connections.
func (o *OpenAIProvider) Close() error {
	o.httpClient.CloseIdleConnections()
	return nil
}

// LocalProvider generates deterministic embeddings from content hashes.
// It requires no network access and is suitable for tests and offline use;
// its vectors carry no semantic signal.
type LocalProvider struct {
	cache *Cache
}

// NewLocalProvider creates a local embedder. The cache may be nil.
func NewLocalProvider(cache *Cache) (*LocalProvider, error) {
	return &LocalProvider{cache: cache}, nil
}

// Embed derives a deterministic vector from the content hash.
func (l *LocalProvider) Embed(ctx context.Context, content string) ([]float32, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}

	hash := ContentHash(content)
	if l.cache != nil {
		if v, ok := l.cache.Get(hash); ok {
			return v, nil
		}
	}

	vector := make([]float32, LocalDimension)
	digest := sha256.Sum256([]byte(content))
	for i := range vector {
		vector[i] = float32(digest[i%len(digest)]) / 255.0
	}

	if l.cache != nil {
		l.cache.Set(hash, vector)
	}
	return vector, nil
}

// Dimension returns the embedding dimension.
func (l *LocalProvider) Dimension() int { return LocalDimension }

// Name returns the provider name.
func (l *LocalProvider) Name() string { return ProviderLocal }

// Close is a no-op for the local provider.
func (l *LocalProvider) Close() error { return nil }
