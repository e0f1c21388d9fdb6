package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := WithDetail(ErrServerRejected, http.StatusConflict, "email already registered")
	wrapped := fmt.Errorf("create user: %w", err)

	assert.True(t, stdErrors.Is(wrapped, ErrServerRejected))
	assert.False(t, stdErrors.Is(wrapped, ErrPermissionDenied))
	assert.True(t, HasCode(wrapped, CodeServerRejected))
}

func TestUserMessagePrefersDetail(t *testing.T) {
	err := WithDetail(ErrServerRejected, http.StatusBadRequest, "Email déjà enregistré")
	assert.Equal(t, "Email déjà enregistré", UserMessage(err, "failed to create user"))
}

func TestUserMessageFallsBack(t *testing.T) {
	assert.Equal(t, "failed to delete user", UserMessage(ErrServerRejected, "failed to delete user"))
	assert.Equal(t, "failed", UserMessage(stdErrors.New("boom"), "failed"))
	assert.Equal(t, ErrValidation.Message, UserMessage(ErrValidation, "failed"))
}

func TestTransportIsTransient(t *testing.T) {
	err := Wrap(stdErrors.New("connection refused"), CodeTransport, 0, ErrTransport.Message)
	assert.True(t, FromError(err).Transient())
	assert.False(t, ErrServerRejected.Transient())
	assert.Contains(t, UserMessage(err, "failed to load zones"), "connection refused")
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(stdErrors.New("boom"))
	assert.Equal(t, CodeInternal, err.Code)
	assert.Nil(t, FromError(nil))
}
