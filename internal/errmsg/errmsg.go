package errmsg

import (
	"errors"
	"net/http"
)

type HTTPError struct {
	Code    int
	Message error
}

func NewHTTPError(code int, message error) HTTPError {
	return HTTPError{Code: code, Message: message}
}

func (e *HTTPError) Error() string {
	return e.Message.Error()
}

var (
	ErrRequestPayloadEmpty = NewHTTPError(
		http.StatusBadRequest,
		errors.New("request payload is empty"),
	)

	ErrRequestPayloadInvalid = NewHTTPError(
		http.StatusBadRequest,
		errors.New("request payload is invalid"),
	)
)

var (
	ErrUserAlreadyExists = NewHTTPError(
		http.StatusConflict,
		errors.New("user already exists"),
	)

	ErrUserNotFound = NewHTTPError(
		http.StatusNotFound,
		errors.New("user not found"),
	)

	ErrUserCredentialsInvalid = NewHTTPError(
		http.StatusUnauthorized,
		errors.New("user credentials invalid"),
	)

	ErrUserBalanceNotEnough = NewHTTPError(
		http.StatusPaymentRequired,
		errors.New("user balance not enough funds"),
	)

	ErrAdminRequired = NewHTTPError(
		http.StatusForbidden,
		errors.New("admin privileges required"),
	)
)

var (
	ErrServiceNotFound = NewHTTPError(
		http.StatusNotFound,
		errors.New("service not found"),
	)

	ErrOrderNotFound = NewHTTPError(
		http.StatusNotFound,
		errors.New("order not found"),
	)

	ErrOrderQuantityInvalid = NewHTTPError(
		http.StatusUnprocessableEntity,
		errors.New("order quantity is out of the allowed range"),
	)

	ErrOrderLinkEmpty = NewHTTPError(
		http.StatusUnprocessableEntity,
		errors.New("order link must not be empty"),
	)

	ErrVendorFailed = NewHTTPError(
		http.StatusBadGateway,
		errors.New("upstream vendor rejected the request"),
	)

	ErrVendorUnavailable = NewHTTPError(
		http.StatusBadGateway,
		errors.New("upstream vendor is unavailable"),
	)
)

var (
	ErrMarkupInvalid = NewHTTPError(
		http.StatusUnprocessableEntity,
		errors.New("markup amount must be a non-negative number"),
	)

	ErrAdjustmentInvalid = NewHTTPError(
		http.StatusUnprocessableEntity,
		errors.New("adjustment parameters are invalid"),
	)
)

var (
	ErrWebhookSignatureInvalid = NewHTTPError(
		http.StatusForbidden,
		errors.New("payment notification signature is invalid"),
	)

	ErrRechargeAmountInvalid = NewHTTPError(
		http.StatusUnprocessableEntity,
		errors.New("recharge amount must be positive"),
	)
)
