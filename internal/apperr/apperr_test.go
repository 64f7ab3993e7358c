package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errThing = NotFound("thing not found")

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("load thing: %w", errThing)

	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, errThing))
	assert.Equal(t, "thing not found", Message(wrapped))

	assert.Equal(t, KindDependency, KindOf(errors.New("boom")))
}

func TestDependencyUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := Dependency("query appointments", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "query appointments: connection refused", err.Error())
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindValidation))
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(KindState))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(KindNotFound))
	assert.Equal(t, http.StatusConflict, HTTPStatus(KindConflict))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(KindDependency))
}
