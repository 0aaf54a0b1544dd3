package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	name string
}

func (s *stubProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	return make([][]float32, len(texts)), nil
}

func (s *stubProvider) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1}, nil
}

func (s *stubProvider) Chat(_ context.Context, _ []Message) (string, error) {
	return "", nil
}

func (s *stubProvider) Generate(_ context.Context, _ string, _ string) (string, error) {
	return "", nil
}

func (s *stubProvider) Name() string { return s.name }

func TestRegisterAndNewProvider(t *testing.T) {
	RegisterProvider("stub", func(config map[string]any) (Provider, error) {
		name, _ := config["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("name is required")
		}
		return &stubProvider{name: name}, nil
	})

	p, err := NewProvider("stub", map[string]any{"name": "stub-a"})
	require.NoError(t, err)
	assert.Equal(t, "stub-a", p.Name())

	_, err = NewProvider("stub", map[string]any{})
	assert.Error(t, err)
}

func TestNewProviderUnknown(t *testing.T) {
	_, err := NewProvider("does-not-exist", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestListProviders(t *testing.T) {
	RegisterProvider("list-me", func(_ map[string]any) (Provider, error) {
		return &stubProvider{name: "list-me"}, nil
	})

	assert.Contains(t, ListProviders(), "list-me")
}

func TestProviderError(t *testing.T) {
	cause := errors.New("connection refused")
	err := &ProviderError{Provider: "openai", Op: "embed", Err: cause}

	assert.Contains(t, err.Error(), "openai")
	assert.Contains(t, err.Error(), "embed")
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsProviderError(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsProviderError(cause))
}
