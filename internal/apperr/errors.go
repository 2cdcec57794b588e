// Package apperr maps the service's failure taxonomy onto go-errors envelopes:
// each failure carries a category, an HTTP status and a stable text code.
package apperr

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

const (
	CodeBadInput        = "BAD_INPUT"
	CodeUnknownToken    = "UNKNOWN_TOKEN"
	CodeUnknownLocation = "UNKNOWN_LOCATION"
	CodeUnknownEvse     = "UNKNOWN_EVSE"
	CodeAmbiguousScope  = "AMBIGUOUS_SCOPE"
	CodeMalformedResult = "MALFORMED_RESULT"
	CodeResultConflict  = "RESULT_CONFLICT"
	CodeNoEndpoint      = "NO_REMOTE_ENDPOINT"
	CodeUpstream        = "UPSTREAM_FAILURE"
	CodeInternal        = "INTERNAL"
)

func newError(message string, category goerrors.Category, code int, textCode string, metadata map[string]any) error {
	err := goerrors.New(message, category).
		WithCode(code).
		WithTextCode(textCode)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}

func BadInput(message string, metadata map[string]any) error {
	return newError(message, goerrors.CategoryBadInput, http.StatusBadRequest, CodeBadInput, metadata)
}

func UnknownToken(tokenId string) error {
	return newError("unknown token", goerrors.CategoryNotFound, http.StatusNotFound, CodeUnknownToken,
		map[string]any{"token_uid": tokenId})
}

func UnknownLocation(locationId string) error {
	return newError("unknown location", goerrors.CategoryNotFound, http.StatusNotFound, CodeUnknownLocation,
		map[string]any{"location_id": locationId})
}

func UnknownEvse(locationId string, evseUids []string) error {
	return newError("unknown EVSE", goerrors.CategoryNotFound, http.StatusNotFound, CodeUnknownEvse,
		map[string]any{"location_id": locationId, "evse_uids": evseUids})
}

func AmbiguousScope(cpoRoles int) error {
	return newError("scope is ambiguous", goerrors.CategoryNotFound, http.StatusNotFound, CodeAmbiguousScope,
		map[string]any{"cpo_roles": cpoRoles})
}

func MalformedResult(source error) error {
	if source == nil {
		return newError("malformed command result", goerrors.CategoryBadInput, http.StatusBadRequest, CodeMalformedResult, nil)
	}
	return goerrors.Wrap(source, goerrors.CategoryBadInput, "malformed command result").
		WithCode(http.StatusBadRequest).
		WithTextCode(CodeMalformedResult)
}

func ResultConflict(commandId string) error {
	return newError("conflicting command result", goerrors.CategoryConflict, http.StatusConflict, CodeResultConflict,
		map[string]any{"command_id": commandId})
}

func NoEndpoint(remoteParty string) error {
	return newError("remote party has no usable endpoint", goerrors.CategoryNotFound, http.StatusUnprocessableEntity, CodeNoEndpoint,
		map[string]any{"remote_party": remoteParty})
}

func Upstream(source error, remoteParty string) error {
	return goerrors.Wrap(source, goerrors.CategoryExternal, "remote party call failed").
		WithCode(http.StatusBadGateway).
		WithTextCode(CodeUpstream).
		WithMetadata(map[string]any{"remote_party": remoteParty})
}

func Internal(source error, message string) error {
	if source == nil {
		return newError(message, goerrors.CategoryInternal, http.StatusInternalServerError, CodeInternal, nil)
	}
	return goerrors.Wrap(source, goerrors.CategoryInternal, message).
		WithCode(http.StatusInternalServerError).
		WithTextCode(CodeInternal)
}

// TextCode returns the text code carried by err, or CodeInternal for foreign errors.
func TextCode(err error) string {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.TextCode != "" {
		return rich.TextCode
	}
	return CodeInternal
}

func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) && rich.Code != 0 {
		return rich.Code
	}
	return http.StatusInternalServerError
}

func Is(err error, textCode string) bool {
	return err != nil && TextCode(err) == textCode
}
