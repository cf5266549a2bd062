package codec

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Version string                     `json:"method_version"`
	Args    []json.RawMessage          `json:"positional_args,omitempty"`
	Kwargs  map[string]json.RawMessage `json:"keyword_args,omitempty"`
}

func TestJSONCodec(t *testing.T) {
	jsonCodec := &JSONCodec{}

	original := &envelope{
		Version: "v1",
		Args:    []json.RawMessage{json.RawMessage(`1`), json.RawMessage(`"two"`)},
		Kwargs:  map[string]json.RawMessage{"b": json.RawMessage(`{"x":[1,2]}`)},
	}

	data, err := jsonCodec.Encode(original)
	require.NoError(t, err)

	var decoded envelope
	require.NoError(t, jsonCodec.Decode(data, &decoded))

	assert.Equal(t, original, &decoded)
	assert.Equal(t, CodecTypeJSON, jsonCodec.Type())
	assert.Equal(t, "application/json", jsonCodec.ContentType())
}

func TestJSONCodecRejectsGarbage(t *testing.T) {
	var decoded envelope
	err := GetCodec(CodecTypeJSON).Decode([]byte("}"), &decoded)
	assert.Error(t, err)
}

func TestGetCodec(t *testing.T) {
	assert.Same(t, Default, GetCodec(CodecTypeJSON))
	assert.Equal(t, CodecTypeJSON, GetCodec(CodecTypeJSON).Type())
	assert.Nil(t, GetCodec(CodecType(7)))
}
