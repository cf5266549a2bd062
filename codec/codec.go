// Package codec turns envelopes into bytes and back.
//
// Only JSON ships today: the envelope's argument and return values are arbitrary
// JSON documents, so every peer on the channel has to agree on it.
package codec

type CodecType byte

const (
	CodecTypeJSON CodecType = 0
)

type Codec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
	Type() CodecType
	ContentType() string // MIME type stamped on published messages
}

// Default is the codec used for every envelope on the wire.
var Default Codec = &JSONCodec{}

var codecs = map[CodecType]Codec{
	CodecTypeJSON: Default,
}

// GetCodec returns the codec for codecType, or nil when none is known.
func GetCodec(codecType CodecType) Codec {
	return codecs[codecType]
}
