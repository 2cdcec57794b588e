package apperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaxonomyCodes(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"unknown token", UnknownToken("012345678"), CodeUnknownToken, http.StatusNotFound},
		{"unknown location", UnknownLocation("LOC1"), CodeUnknownLocation, http.StatusNotFound},
		{"unknown evse", UnknownEvse("LOC1", []string{"A"}), CodeUnknownEvse, http.StatusNotFound},
		{"ambiguous", AmbiguousScope(2), CodeAmbiguousScope, http.StatusNotFound},
		{"malformed", MalformedResult(errors.New("bad json")), CodeMalformedResult, http.StatusBadRequest},
		{"malformed nil", MalformedResult(nil), CodeMalformedResult, http.StatusBadRequest},
		{"conflict", ResultConflict("cmd-1"), CodeResultConflict, http.StatusConflict},
		{"no endpoint", NoEndpoint("DE-ABC_CPO"), CodeNoEndpoint, http.StatusUnprocessableEntity},
		{"upstream", Upstream(errors.New("refused"), "DE-ABC_CPO"), CodeUpstream, http.StatusBadGateway},
		{"bad input", BadInput("missing", nil), CodeBadInput, http.StatusBadRequest},
		{"internal", Internal(errors.New("db down"), "store failed"), CodeInternal, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.code, TextCode(tc.err))
			assert.Equal(t, tc.status, HTTPStatus(tc.err))
			assert.True(t, Is(tc.err, tc.code))
		})
	}
}

func TestForeignErrorsAreInternal(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, CodeInternal, TextCode(err))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
	assert.Equal(t, "", TextCode(nil))
	assert.Equal(t, http.StatusOK, HTTPStatus(nil))
}
