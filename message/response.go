package message

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"

	"mq-rpc/codec"
	"mq-rpc/rpcerror"
)

// Response is the outcome of one request. It is successful iff StatusCode is
// zero, in which case ReturnValue is set; otherwise ErrorMessage describes the
// failure.
type Response struct {
	StatusCode      uint32          `json:"status_code"`
	ReturnValue     json.RawMessage `json:"return_value,omitempty"`
	ErrorMessage    string          `json:"error_message,omitempty"`
	ProtocolVersion string          `json:"protocol_version"`
}

// NewResponse wraps a handler's return value in a successful response.
func NewResponse(value any) (*Response, error) {
	raw, err := marshalValue(value)
	if err != nil {
		return nil, rpcerror.Wrap(rpcerror.CodeResponse, err, "Unable to serialize response: "+err.Error())
	}
	return &Response{
		StatusCode:      rpcerror.CodeOK,
		ReturnValue:     raw,
		ProtocolVersion: ProtocolVersion,
	}, nil
}

func NewErrorResponse(code uint32, message string) *Response {
	return &Response{
		StatusCode:      code,
		ErrorMessage:    message,
		ProtocolVersion: ProtocolVersion,
	}
}

// NewFailure converts err into a failed response. Errors carrying a code keep
// it; anything else is reported as an unhandled exception.
func NewFailure(err error) *Response {
	msg := err.Error()
	if code, ok := rpcerror.CodeOf(err); ok {
		return NewErrorResponse(code, msg)
	}
	if msg == "" {
		msg = rpcerror.ErrUnhandled.Message()
	}
	return NewErrorResponse(rpcerror.CodeUnhandled, msg)
}

func (r *Response) OK() bool {
	return r.StatusCode == rpcerror.CodeOK
}

// Decode unmarshals the return value into v. A response without a return
// value leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(r.ReturnValue) == 0 {
		return nil
	}
	return codec.Default.Decode(r.ReturnValue, v)
}

// Value decodes the return value into generic Go values.
func (r *Response) Value() (any, error) {
	var v any
	if err := r.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

// Err returns nil for a successful response, otherwise the error resolved for
// its status code (extended codes first, then codes, then a generic error).
func (r *Response) Err(codes *rpcerror.Registry, extended map[uint32]rpcerror.Constructor) error {
	if r.OK() {
		return nil
	}
	return codes.Resolve(r.StatusCode, r.ErrorMessage, extended)
}

func (r *Response) Marshal() ([]byte, error) {
	data, err := codec.Default.Encode(r)
	if err != nil {
		return nil, rpcerror.Wrap(rpcerror.CodeResponse, err, "Unable to serialize response: "+err.Error())
	}
	return data, nil
}

// UnmarshalResponse decodes a response body. Failures carry
// rpcerror.CodeResponse and match ErrMalformedEnvelope.
func UnmarshalResponse(data []byte) (*Response, error) {
	if err := requireFields(codec.Default, data, "status_code", "protocol_version"); err != nil {
		return nil, rpcerror.Wrap(rpcerror.CodeResponse, err, "Unable to deserialize response: "+err.Error())
	}
	resp := &Response{}
	if err := codec.Default.Decode(data, resp); err != nil {
		err = errors.Wrap(ErrMalformedEnvelope, err.Error())
		return nil, rpcerror.Wrap(rpcerror.CodeResponse, err, "Unable to deserialize response: "+err.Error())
	}
	return resp, nil
}

func (r *Response) String() string {
	return fmt.Sprintf("<Response(code=%#x, return_value=%s, error_message=%q)>", r.StatusCode, r.ReturnValue, r.ErrorMessage)
}
