package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	e := New(2001, 400, "invalid input")
	assert.Equal(t, 2001, e.Code)
	assert.Equal(t, 400, e.HttpCode)
	assert.Equal(t, "invalid input", e.Error())
	assert.Nil(t, e.Err)
}

func TestWithError(t *testing.T) {
	cause := errors.New("db timeout")
	e := ErrServer.WithError(cause)

	// 不修改共享的预定义错误
	assert.Nil(t, ErrServer.Err)
	assert.Equal(t, cause, e.Err)
	assert.Equal(t, ErrServer.Code, e.Code)
	assert.Equal(t, cause, errors.Unwrap(e))
}

func TestWithMessage(t *testing.T) {
	e := ErrValidation.WithMessage("Invalid metric_name")

	assert.Equal(t, "Validation failed", ErrValidation.Message)
	assert.Equal(t, "Invalid metric_name", e.Message)
	assert.Equal(t, ErrValidation.Code, e.Code)
	assert.Equal(t, ErrValidation.HttpCode, e.HttpCode)
}

func TestIs(t *testing.T) {
	// 相同 Code 视为同一错误
	assert.True(t, errors.Is(ErrNoData.WithMessage("No document found"), ErrNoData))
	assert.False(t, errors.Is(ErrNoData, ErrServer))

	// 包装后的原始错误仍可匹配
	cause := errors.New("connection refused")
	assert.True(t, errors.Is(ErrServer.WithError(cause), cause))
}

func TestAs(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", ErrUnauthorized)

	var e *Error
	require.True(t, errors.As(wrapped, &e))
	assert.Equal(t, 401, e.HttpCode)
	assert.Equal(t, "Invalid API KEY", e.Message)
}

func TestClone(t *testing.T) {
	c := ErrBadRequest.Clone()
	c.Message = "changed"

	assert.Equal(t, "Bad request", ErrBadRequest.Message)
	assert.Equal(t, ErrBadRequest.Code, c.Code)
}
