package core

import (
	"encoding/json"
	"errors"
	"net/http"
)

type ErrorCode string

const (
	ErrorCodeBadGateway                  ErrorCode = "BAD_GATEWAY"
	ErrorCodeBadRequest                  ErrorCode = "BAD_REQUEST"
	ErrorCodeConflict                    ErrorCode = "CONFLICT"
	ErrorCodeForbidden                   ErrorCode = "FORBIDDEN"
	ErrorCodeGone                        ErrorCode = "GONE"
	ErrorCodeInternalServerError         ErrorCode = "INTERNAL_SERVER_ERROR"
	ErrorCodeMethodNotAllowed            ErrorCode = "METHOD_NOT_ALLOWED"
	ErrorCodeNotFound                    ErrorCode = "NOT_FOUND"
	ErrorCodeNotImplemented              ErrorCode = "NOT_IMPLEMENTED"
	ErrorCodePaymentRequired             ErrorCode = "PAYMENT_REQUIRED"
	ErrorCodeProxyAuthenticationRequired ErrorCode = "PROXY_AUTHENTICATION_REQUIRED"
	ErrorCodeServiceUnavailable          ErrorCode = "SERVICE_UNAVAILABLE"
	ErrorCodeStoreLimitExceeded          ErrorCode = "STORE_LIMIT_EXCEEDED"
	ErrorCodeStoreMagnetInvalid          ErrorCode = "STORE_MAGNET_INVALID"
	ErrorCodeTooManyRequests             ErrorCode = "TOO_MANY_REQUESTS"
	ErrorCodeUnauthorized                ErrorCode = "UNAUTHORIZED"
	ErrorCodeUnavailableForLegalReasons  ErrorCode = "UNAVAILABLE_FOR_LEGAL_REASONS"
	ErrorCodeUnprocessableEntity         ErrorCode = "UNPROCESSABLE_ENTITY"
	ErrorCodeUnsupportedMediaType        ErrorCode = "UNSUPPORTED_MEDIA_TYPE"

	ErrorCodeInvalidConfig       ErrorCode = "INVALID_CONFIG"
	ErrorCodeInvalidExpression   ErrorCode = "INVALID_EXPRESSION"
	ErrorCodeInvalidRegex        ErrorCode = "INVALID_REGEX"
	ErrorCodeLockTimeout         ErrorCode = "LOCK_TIMEOUT"
	ErrorCodeNoMatchingFile      ErrorCode = "NO_MATCHING_FILE"
	ErrorCodePlaybackDownloading ErrorCode = "PLAYBACK_DOWNLOADING"
	ErrorCodeProviderBadResponse ErrorCode = "PROVIDER_BAD_RESPONSE"
	ErrorCodeProviderHTTPError   ErrorCode = "PROVIDER_HTTP_ERROR"
	ErrorCodeProviderTimeout     ErrorCode = "PROVIDER_TIMEOUT"
	ErrorCodeRecursiveRequest    ErrorCode = "RECURSIVE_REQUEST"
	ErrorCodeTypeError           ErrorCode = "TYPE_ERROR"
)

func errorCodeStatusCode(code ErrorCode) int {
	switch code {
	case ErrorCodeBadGateway:
		return http.StatusBadGateway
	case ErrorCodeBadRequest, ErrorCodeInvalidConfig, ErrorCodeInvalidExpression, ErrorCodeInvalidRegex, ErrorCodeTypeError:
		return http.StatusBadRequest
	case ErrorCodeConflict:
		return http.StatusConflict
	case ErrorCodeForbidden:
		return http.StatusForbidden
	case ErrorCodeGone:
		return http.StatusGone
	case ErrorCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case ErrorCodeNotFound, ErrorCodeNoMatchingFile:
		return http.StatusNotFound
	case ErrorCodeNotImplemented:
		return http.StatusNotImplemented
	case ErrorCodePaymentRequired:
		return http.StatusPaymentRequired
	case ErrorCodeProxyAuthenticationRequired:
		return http.StatusProxyAuthRequired
	case ErrorCodeServiceUnavailable, ErrorCodeProviderTimeout:
		return http.StatusServiceUnavailable
	case ErrorCodeStoreLimitExceeded:
		return http.StatusForbidden
	case ErrorCodeStoreMagnetInvalid, ErrorCodeUnprocessableEntity:
		return http.StatusUnprocessableEntity
	case ErrorCodeTooManyRequests, ErrorCodeRecursiveRequest:
		return http.StatusTooManyRequests
	case ErrorCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrorCodeUnavailableForLegalReasons:
		return http.StatusUnavailableForLegalReasons
	case ErrorCodeUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case ErrorCodeLockTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

type Error struct {
	Code       ErrorCode `json:"code"`
	Msg        string    `json:"message"`
	StatusCode int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Cause != nil {
		return e.Cause.Error()
	}
	return string(e.Code)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	if e.Msg == "" && cause != nil {
		e.Msg = cause.Error()
	}
	return e
}

func (e *Error) WithMsg(msg string) *Error {
	e.Msg = msg
	return e
}

func (e *Error) Send(w http.ResponseWriter, r *http.Request) {
	statusCode := e.StatusCode
	if statusCode == 0 {
		statusCode = errorCodeStatusCode(e.Code)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(struct {
		Error *Error `json:"error"`
	}{Error: e})
}

func NewError(code ErrorCode, msg string) *Error {
	return &Error{
		Code:       code,
		Msg:        msg,
		StatusCode: errorCodeStatusCode(code),
	}
}

// AsError pulls out an *Error from err's chain, or wraps err as an
// internal server error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(ErrorCodeInternalServerError, "").WithCause(err)
}
