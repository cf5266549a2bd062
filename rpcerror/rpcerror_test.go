package rpcerror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type myError struct{ msg string }

func (e *myError) Error() string { return e.msg }
func (e *myError) Code() uint32  { return 10 }

func TestReservedCodes(t *testing.T) {
	assert.Equal(t, uint32(0xF0000000), CodeUnhandled)
	assert.Equal(t, uint32(0xF0000001), CodeRequest)
	assert.Equal(t, uint32(0xF0000002), CodeResponse)
	assert.Equal(t, uint32(0xF0000003), CodeDispatch)
	assert.Equal(t, uint32(0x00F00001), CodeClientTimeout)

	for _, code := range []uint32{0, CodeUnhandled, CodeDispatch, CodeClientTimeout, 0xFFFFFFFF} {
		assert.True(t, IsReserved(code), "%#x", code)
	}
	for _, code := range []uint32{1, 10, 0x0F000000, 0x00E00000} {
		assert.False(t, IsReserved(code), "%#x", code)
	}
}

func TestErrorIsMatchesCode(t *testing.T) {
	err := Newf(CodeDispatch, "Failed to locate handler for routing key '%s'", "add")
	assert.True(t, errors.Is(err, ErrDispatch))
	assert.False(t, errors.Is(err, ErrRequest))
	assert.Equal(t, "Failed to locate handler for routing key 'add'", err.Error())

	cause := errors.New("unexpected EOF")
	wrapped := fmt.Errorf("decoding: %w", Wrap(CodeRequest, cause, "Unable to deserialize request"))
	assert.True(t, errors.Is(wrapped, ErrRequest))
	assert.True(t, errors.Is(wrapped, cause))

	code, ok := CodeOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, CodeRequest, code)

	_, ok = CodeOf(errors.New("plain"))
	assert.False(t, ok)

	code, ok = CodeOf(&myError{"boom"})
	assert.True(t, ok)
	assert.Equal(t, uint32(10), code)
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry()

	err := reg.Resolve(CodeDispatch, "", nil)
	assert.True(t, errors.Is(err, ErrDispatch))
	assert.Equal(t, "Dispatch Exception", err.Error())

	err = reg.Resolve(CodeClientTimeout, "Request timed out.", nil)
	assert.True(t, errors.Is(err, ErrClientTimeout))
	assert.Equal(t, "Request timed out.", err.Error())

	assert.Nil(t, reg.Resolve(CodeOK, "", nil))
}

func TestRegistryExtendedCodesWin(t *testing.T) {
	reg := NewRegistry()
	extended := map[uint32]Constructor{
		10: func(msg string) error { return &myError{msg} },
	}

	err := reg.Resolve(10, "documented failure", extended)
	var mine *myError
	require.True(t, errors.As(err, &mine))
	assert.Equal(t, "documented failure", mine.msg)

	// without the extension the code is unknown, so it falls back to a generic error
	err = reg.Resolve(10, "documented failure", nil)
	var generic *Error
	require.True(t, errors.As(err, &generic))
	assert.Equal(t, uint32(10), generic.Code())
	assert.Equal(t, "documented failure", generic.Message())
}

func TestRegistryRegister(t *testing.T) {
	reg := NewRegistry()
	ctor := func(msg string) error { return &myError{msg} }

	require.NoError(t, reg.Register(10, ctor))
	assert.Error(t, reg.Register(10, ctor))
	assert.Error(t, reg.Register(CodeOK, ctor))
	assert.Error(t, reg.Register(CodeDispatch, ctor))
	assert.Error(t, reg.Register(CodeClientTimeout, ctor))
	assert.Error(t, reg.Register(11, nil))

	err := reg.Resolve(10, "x", nil)
	_, ok := err.(*myError)
	assert.True(t, ok)
}

func TestNilRegistryFallsBack(t *testing.T) {
	var reg *Registry
	err := reg.Resolve(42, "custom", nil)
	code, ok := CodeOf(err)
	assert.True(t, ok)
	assert.Equal(t, uint32(42), code)
}
