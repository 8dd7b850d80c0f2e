package llm

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripCodeFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripCodeFences(`{"a":1}`))
	assert.Equal(t, `{"a":1}`, stripCodeFences("  {\"a\":1}  "))
}

func TestNewGeminiRequiresKey(t *testing.T) {
	_, err := NewGemini("", "", zerolog.Nop())
	assert.Error(t, err)

	client, err := NewGemini("key", "", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, defaultModel, client.Name())

	client, err = NewGemini("key", `"gemini-2.0-pro"`, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.0-pro", client.Name())
}
