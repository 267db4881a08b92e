package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   Kind
		status int
	}{
		{"validation", Validation("title is required"), KindValidation, http.StatusBadRequest},
		{"wrapped not found", fmt.Errorf("load: %w", NotFound("card not found")), KindNotFound, http.StatusNotFound},
		{"auth", Auth("not authenticated"), KindAuth, http.StatusUnauthorized},
		{"forbidden", Forbidden("not logged in"), KindForbidden, http.StatusForbidden},
		{"conflict", Conflict(errors.New("dup"), "already trashed"), KindConflict, http.StatusConflict},
		{"plain error", errors.New("boom"), KindBackend, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, KindOf(tt.err))
			assert.Equal(t, tt.status, KindOf(tt.err).Status())
		})
	}
}

func TestErrorsIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("soft delete: %w", NotFound("upload %s not found", "x"))

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConflict)
}

func TestMessage(t *testing.T) {
	cause := errors.New("disk full")
	err := Backend(cause, "could not store file")

	assert.Equal(t, "could not store file", Message(err))
	assert.Equal(t, "could not store file: disk full", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "internal error", Message(errors.New("raw")))
}
