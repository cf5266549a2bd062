// Package message defines the envelopes exchanged between a proxy and a server.
//
// A Request is published to "{service}.{method}" with a correlation id and a
// reply destination; the server answers with exactly one Response carrying the
// same correlation id.
//
//	Request  { method_version, positional_args?, keyword_args?, protocol_version }
//	Response { status_code, return_value?, error_message?, protocol_version }
//
// Argument and return values are kept as raw JSON so that a server can decode
// them into whatever parameter types its handler declares.
package message

import (
	"encoding/json"

	"github.com/pkg/errors"

	"mq-rpc/codec"
)

// ErrMalformedEnvelope is matched by every decoding failure, as opposed to a
// failure reported by a handler.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// requireFields checks that data is a JSON object holding every named key.
func requireFields(c codec.Codec, data []byte, names ...string) error {
	var fields map[string]json.RawMessage
	if err := c.Decode(data, &fields); err != nil {
		return errors.Wrap(ErrMalformedEnvelope, err.Error())
	}
	if fields == nil {
		return errors.Wrap(ErrMalformedEnvelope, "envelope is not an object")
	}
	for _, name := range names {
		if _, ok := fields[name]; !ok {
			return errors.Wrapf(ErrMalformedEnvelope, "missing field %q", name)
		}
	}
	return nil
}

func marshalValue(v any) (json.RawMessage, error) {
	if raw, ok := v.(json.RawMessage); ok {
		return raw, nil
	}
	data, err := codec.Default.Encode(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}
