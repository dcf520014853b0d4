package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorConstructors(t *testing.T) {
	tests := []struct {
		name       string
		err        *Error
		wantType   ErrorType
		wantStatus int
	}{
		{"validation", ValidationError("bad input"), TypeValidation, http.StatusBadRequest},
		{"not found", NotFoundError("missing"), TypeNotFound, http.StatusNotFound},
		{"conflict", ConflictError("already active"), TypeConflict, http.StatusConflict},
		{"worker launch", WorkerLaunchError("spawn failed", errors.New("exec")), TypeWorkerLaunch, http.StatusBadGateway},
		{"internal", InternalError("boom", errors.New("cause")), TypeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantType, tt.err.Type)
			assert.Equal(t, tt.wantStatus, tt.err.HTTPStatus())
		})
	}
}

func TestErrorString(t *testing.T) {
	err := InternalError("save failed", errors.New("disk full"))
	assert.Equal(t, "internal: save failed: disk full", err.Error())

	err = ConflictError("session already active")
	assert.Equal(t, "conflict: session already active", err.Error())
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := InternalError("wrapper", cause)
	assert.True(t, errors.Is(err, cause))
}

func TestWithField(t *testing.T) {
	err := ValidationError("invalid").WithField("field", "email").WithField("value", 42)
	assert.Equal(t, "email", err.Context["field"])
	assert.Equal(t, 42, err.Context["value"])
}

func TestAsStructuredError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, AsStructuredError(nil))
	})

	t.Run("already structured", func(t *testing.T) {
		orig := ConflictError("busy")
		got := AsStructuredError(orig)
		assert.Same(t, orig, got)
	})

	t.Run("wrapped structured", func(t *testing.T) {
		orig := NotFoundError("gone")
		got := AsStructuredError(fmt.Errorf("outer: %w", orig))
		assert.Same(t, orig, got)
	})

	t.Run("plain error", func(t *testing.T) {
		got := AsStructuredError(errors.New("plain"))
		require.NotNil(t, got)
		assert.Equal(t, TypeInternal, got.Type)
	})
}

func TestToResponse(t *testing.T) {
	err := ValidationError("user config missing").WithField("reason", "no documents")
	resp := err.ToResponse()
	assert.Equal(t, "user config missing", resp.Error)
	assert.Equal(t, TypeValidation, resp.Type)
	assert.Equal(t, "no documents", resp.Context["reason"])
}
