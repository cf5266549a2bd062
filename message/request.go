package message

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"mq-rpc/codec"
	"mq-rpc/rpcerror"
)

// Request asks for one invocation of a versioned method. The method name is
// not part of the envelope; it is carried by the destination.
type Request struct {
	MethodVersion   string                     `json:"method_version"`
	Args            []json.RawMessage          `json:"positional_args,omitempty"`
	Kwargs          map[string]json.RawMessage `json:"keyword_args,omitempty"`
	ProtocolVersion string                     `json:"protocol_version"`
}

// NewRequest encodes args and kwargs into a request for version.
func NewRequest(version string, args []any, kwargs map[string]any) (*Request, error) {
	req := &Request{
		MethodVersion:   version,
		ProtocolVersion: ProtocolVersion,
	}
	for i, arg := range args {
		raw, err := marshalValue(arg)
		if err != nil {
			return nil, errors.Wrapf(err, "encode positional argument %d", i)
		}
		req.Args = append(req.Args, raw)
	}
	if len(kwargs) > 0 {
		req.Kwargs = make(map[string]json.RawMessage, len(kwargs))
		for name, arg := range kwargs {
			raw, err := marshalValue(arg)
			if err != nil {
				return nil, errors.Wrapf(err, "encode keyword argument %q", name)
			}
			req.Kwargs[name] = raw
		}
	}
	return req, nil
}

func (r *Request) Marshal() ([]byte, error) {
	return codec.Default.Encode(r)
}

// UnmarshalRequest decodes a request body. Failures carry rpcerror.CodeRequest
// and match ErrMalformedEnvelope.
func UnmarshalRequest(data []byte) (*Request, error) {
	if err := requireFields(codec.Default, data, "method_version", "protocol_version"); err != nil {
		return nil, rpcerror.Wrap(rpcerror.CodeRequest, err, "Unable to deserialize request: "+err.Error())
	}
	req := &Request{}
	if err := codec.Default.Decode(data, req); err != nil {
		err = errors.Wrap(ErrMalformedEnvelope, err.Error())
		return nil, rpcerror.Wrap(rpcerror.CodeRequest, err, "Unable to deserialize request: "+err.Error())
	}
	return req, nil
}

func (r *Request) String() string {
	return fmt.Sprintf("<Request(version=%q, args=%d, kwargs=%d)>", r.MethodVersion, len(r.Args), len(r.Kwargs))
}
