package message

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mq-rpc/rpcerror"
)

func TestRequestRoundTrip(t *testing.T) {
	req, err := NewRequest("v1", []any{1, "two"}, map[string]any{"b": 2.5})
	require.NoError(t, err)

	data, err := req.Marshal()
	require.NoError(t, err)

	got, err := UnmarshalRequest(data)
	require.NoError(t, err)
	assert.Equal(t, "v1", got.MethodVersion)
	assert.Equal(t, ProtocolVersion, got.ProtocolVersion)
	require.Len(t, got.Args, 2)
	assert.JSONEq(t, `1`, string(got.Args[0]))
	assert.JSONEq(t, `"two"`, string(got.Args[1]))
	assert.JSONEq(t, `2.5`, string(got.Kwargs["b"]))
}

func TestRequestOmitsEmptyArguments(t *testing.T) {
	req, err := NewRequest("built-in", nil, nil)
	require.NoError(t, err)
	data, err := req.Marshal()
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.NotContains(t, fields, "positional_args")
	assert.NotContains(t, fields, "keyword_args")
	assert.Equal(t, "built-in", fields["method_version"])
}

func TestUnmarshalRequestMalformed(t *testing.T) {
	cases := map[string]string{
		"garbage":          `}`,
		"not an object":    `[1,2]`,
		"missing version":  `{"protocol_version":"1.0.0"}`,
		"missing protocol": `{"method_version":"v1"}`,
		"wrong type":       `{"method_version":3,"protocol_version":"1.0.0"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := UnmarshalRequest([]byte(body))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedEnvelope))
			assert.True(t, errors.Is(err, rpcerror.ErrRequest))
			code, ok := rpcerror.CodeOf(err)
			assert.True(t, ok)
			assert.Equal(t, rpcerror.CodeRequest, code)
		})
	}
}

func TestResponseRoundTrip(t *testing.T) {
	resp, err := NewResponse(map[string]int{"sum": 3})
	require.NoError(t, err)
	assert.True(t, resp.OK())

	data, err := resp.Marshal()
	require.NoError(t, err)
	got, err := UnmarshalResponse(data)
	require.NoError(t, err)
	assert.Equal(t, resp, got)

	var out map[string]int
	require.NoError(t, got.Decode(&out))
	assert.Equal(t, 3, out["sum"])
	assert.NoError(t, got.Err(nil, nil))
}

func TestResponseNilValue(t *testing.T) {
	resp, err := NewResponse(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `null`, string(resp.ReturnValue))

	v, err := resp.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestUnmarshalResponseMalformed(t *testing.T) {
	for _, body := range []string{`{`, `{"status_code":0}`, `{"protocol_version":"1.0.0"}`} {
		_, err := UnmarshalResponse([]byte(body))
		require.Error(t, err, body)
		assert.True(t, errors.Is(err, ErrMalformedEnvelope), body)
		assert.True(t, errors.Is(err, rpcerror.ErrResponse), body)
	}
}

func TestErrorResponse(t *testing.T) {
	resp := NewErrorResponse(rpcerror.CodeDispatch, "no such method")
	assert.False(t, resp.OK())

	err := resp.Err(rpcerror.NewRegistry(), nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, rpcerror.ErrDispatch))
	assert.Equal(t, "no such method", err.Error())

	data, err := resp.Marshal()
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.NotContains(t, fields, "return_value")
}

type quotaError struct{}

func (quotaError) Error() string { return "quota exceeded" }
func (quotaError) Code() uint32  { return 10 }

func TestNewFailure(t *testing.T) {
	resp := NewFailure(quotaError{})
	assert.Equal(t, uint32(10), resp.StatusCode)
	assert.Equal(t, "quota exceeded", resp.ErrorMessage)

	resp = NewFailure(errors.New("boom"))
	assert.Equal(t, rpcerror.CodeUnhandled, resp.StatusCode)
	assert.Equal(t, "boom", resp.ErrorMessage)

	resp = NewFailure(errors.New(""))
	assert.Equal(t, "Unknown Exception", resp.ErrorMessage)
}

func TestCheckVersion(t *testing.T) {
	assert.NoError(t, CheckVersion(ProtocolVersion))
	err := CheckVersion("0.1")
	assert.True(t, errors.Is(err, ErrVersionMismatch))
}

func TestCatalogueVersions(t *testing.T) {
	c := Catalogue{Methods: []MethodDescriptor{
		{Method: "hello", Version: "v1"},
		{Method: "hello", Version: "v2"},
		{Method: "bye", Version: "v1"},
	}}
	got := c.Versions("v1")
	require.Len(t, got, 2)
	assert.Equal(t, "hello", got[0].Method)
	assert.Equal(t, "bye", got[1].Method)
	assert.Empty(t, c.Versions("v3"))
}
