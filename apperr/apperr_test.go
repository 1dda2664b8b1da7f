package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, NotFound, CodeOf(New(NotFound, "Invalid QR.")))
	assert.Equal(t, Internal, CodeOf(errors.New("plain")))

	// Wrapped typed errors keep their code.
	wrapped := fmt.Errorf("consume session: %w", New(DeadlineExceeded, "QR expired."))
	assert.Equal(t, DeadlineExceeded, CodeOf(wrapped))
	assert.Equal(t, "QR expired.", MessageOf(wrapped))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, HTTPStatus(New(Unauthenticated, "no token")))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(New(PermissionDenied, "admins only")))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(New(InvalidArgument, "missing field")))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(New(NotFound, "no such session")))
	assert.Equal(t, http.StatusConflict, HTTPStatus(New(FailedPrecondition, "already used")))
	assert.Equal(t, http.StatusGone, HTTPStatus(New(DeadlineExceeded, "expired")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(errors.New("boom")))
}
