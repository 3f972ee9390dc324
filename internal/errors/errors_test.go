package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := New(ErrCodeNotFound, "mapping not found")
		assert.Equal(t, "NOT_FOUND: mapping not found", err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(ErrCodeDatabase, "Database error", cause)
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Wrap(ErrCodeInternal, "wrapper", cause)

	assert.True(t, errors.Is(err, cause))
}

func TestAsAppError(t *testing.T) {
	t.Run("direct", func(t *testing.T) {
		appErr, ok := AsAppError(CapacityExhausted())
		assert.True(t, ok)
		assert.Equal(t, ErrCodeCapacityExhausted, appErr.Code)
	})

	t.Run("wrapped in fmt chain", func(t *testing.T) {
		err := fmt.Errorf("issue links: %w", LinkInvalid())
		appErr, ok := AsAppError(err)
		assert.True(t, ok)
		assert.Equal(t, ErrCodeLinkInvalid, appErr.Code)
	})

	t.Run("plain error", func(t *testing.T) {
		_, ok := AsAppError(errors.New("nope"))
		assert.False(t, ok)
	})
}

func TestIsCode(t *testing.T) {
	assert.True(t, IsCode(TokenCollision(), ErrCodeTokenCollision))
	assert.False(t, IsCode(TokenCollision(), ErrCodeNotFound))
	assert.False(t, IsCode(errors.New("plain"), ErrCodeNotFound))
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, ErrCodeUnauthorized, GetCode(Unauthorized("nope")))
	assert.Equal(t, ErrCodeInternal, GetCode(errors.New("plain")))
}

func TestConstructors(t *testing.T) {
	assert.Equal(t, ErrCodeMissingRequired, MissingRequired("ids").Code)
	assert.Contains(t, MissingRequired("ids").Message, "ids")
	assert.Contains(t, InvalidInput("quantity", "must be at least 1").Message, "quantity")
	assert.Equal(t, ErrCodeTxConflict, TransactionConflict(nil).Code)
}
