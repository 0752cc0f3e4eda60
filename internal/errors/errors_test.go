package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorStringAndUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(cause, ErrCodeInternal, "failed to update approval step")

	assert.Contains(t, err.Error(), "INTERNAL")
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)
}

func TestCodeOfWrappedError(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(ErrCodeWrongTurn, "not your approval step"))
	assert.Equal(t, ErrCodeWrongTurn, CodeOf(err))
	assert.True(t, Is(err, ErrCodeWrongTurn))
}

func TestCodeOfUncodedError(t *testing.T) {
	assert.Equal(t, ErrCodeInternal, CodeOf(stderrors.New("boom")))
}

func TestMessageOfHidesInternals(t *testing.T) {
	assert.Equal(t, "internal server error", MessageOf(stderrors.New("pq: relation missing")))
	assert.Equal(t, "not authenticated", MessageOf(New(ErrCodeUnauthorized, "not authenticated")))
}

func TestDetails(t *testing.T) {
	err := New(ErrCodeCodeMismatch, "wrong code").
		WithDetail("requestSapCode", "1000").
		WithDetail("yourSapCodes", []string{"2000"})

	details := DetailsOf(err)
	assert.Equal(t, "1000", details["requestSapCode"])
	assert.Nil(t, DetailsOf(stderrors.New("plain")))
}

func TestNotFoundAndInvalidInput(t *testing.T) {
	nf := NotFound("reimbursement", "r-1")
	assert.Equal(t, ErrCodeNotFound, nf.Code)
	assert.Equal(t, "r-1", nf.Details["id"])

	ii := InvalidInput("remarks", "remarks are required")
	assert.Equal(t, ErrCodeInvalidInput, ii.Code)
	assert.Equal(t, "remarks", ii.Details["field"])
}

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeWrongTurn, http.StatusForbidden},
		{ErrCodeCodeMismatch, http.StatusForbidden},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeNoPendingStep, http.StatusNotFound},
		{ErrCodeMissingRemarks, http.StatusBadRequest},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(New(tt.code, "x")), string(tt.code))
	}

	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(stderrors.New("boom")))
}
