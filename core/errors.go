package core

import (
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	RelayErrorBadInput          = "RELAY_BAD_INPUT"
	RelayErrorMessageNotFound   = "RELAY_MESSAGE_NOT_FOUND"
	RelayErrorInvalidTransition = "RELAY_INVALID_TRANSITION"
	RelayErrorConfiguration     = "RELAY_CONFIGURATION_ERROR"
	RelayErrorStoreUnavailable  = "RELAY_STORE_UNAVAILABLE"
	RelayErrorTickInFlight      = "RELAY_TICK_IN_FLIGHT"
	RelayErrorInternal          = "RELAY_INTERNAL_ERROR"
)

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureRelayErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "message not found"), strings.Contains(msg, "subscription not found"):
		return newRelayError(err.Error(), goerrors.CategoryNotFound, RelayErrorMessageNotFound)
	case strings.Contains(msg, "invalid message status transition"), strings.Contains(msg, "not claimed by"):
		return newRelayError(err.Error(), goerrors.CategoryConflict, RelayErrorInvalidTransition)
	case strings.Contains(msg, "store unavailable"):
		return newRelayError(err.Error(), goerrors.CategoryExternal, RelayErrorStoreUnavailable)
	case strings.Contains(msg, "cannot write"), strings.Contains(msg, "not registered"):
		return newRelayError(err.Error(), goerrors.CategoryOperation, RelayErrorConfiguration)
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"), strings.Contains(msg, "empty"):
		return newRelayError(err.Error(), goerrors.CategoryBadInput, RelayErrorBadInput)
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureRelayErrorEnvelope(mapped)
}

func newRelayError(message string, category goerrors.Category, textCode string) *goerrors.Error {
	return ensureRelayErrorEnvelope(
		goerrors.New(message, category).
			WithTextCode(textCode),
	)
}

func ensureRelayErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = relayHTTPStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultRelayTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultRelayTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return RelayErrorBadInput
	case goerrors.CategoryNotFound:
		return RelayErrorMessageNotFound
	case goerrors.CategoryConflict:
		return RelayErrorInvalidTransition
	case goerrors.CategoryOperation:
		return RelayErrorConfiguration
	case goerrors.CategoryExternal:
		return RelayErrorStoreUnavailable
	default:
		return RelayErrorInternal
	}
}

func relayHTTPStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryOperation:
		return http.StatusUnprocessableEntity
	case goerrors.CategoryExternal:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
