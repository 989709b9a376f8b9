package plaid

import (
	"errors"
	"fmt"
	"net/http"

	plaidsdk "github.com/plaid/plaid-go/v29/plaid"
)

// APIError is a non-2xx response from Plaid.
type APIError struct {
	StatusCode     int
	ErrorType      string
	ErrorCode      string
	ErrorMessage   string
	DisplayMessage string
	RequestID      string
}

func (e *APIError) Error() string {
	if e.ErrorCode == "" {
		return fmt.Sprintf("plaid: HTTP %d: %s", e.StatusCode, e.ErrorMessage)
	}
	return fmt.Sprintf("plaid: %s %s: %s (request %s)", e.ErrorType, e.ErrorCode, e.ErrorMessage, e.RequestID)
}

// apiError converts an SDK call failure into an *APIError when the server
// answered with an error status; other failures are returned unchanged.
func apiError(resp *http.Response, err error) error {
	if resp == nil || resp.StatusCode < http.StatusMultipleChoices {
		return err
	}
	apiErr := &APIError{StatusCode: resp.StatusCode}
	plaidErr, convErr := plaidsdk.ToPlaidError(err)
	if convErr != nil {
		apiErr.ErrorMessage = err.Error()
		return apiErr
	}
	apiErr.ErrorType = string(plaidErr.GetErrorType())
	apiErr.ErrorCode = plaidErr.GetErrorCode()
	apiErr.ErrorMessage = plaidErr.GetErrorMessage()
	apiErr.DisplayMessage = plaidErr.GetDisplayMessage()
	apiErr.RequestID = plaidErr.GetRequestId()
	return apiErr
}

// IsItemLoginRequired reports whether err asks the user to re-link the item.
func IsItemLoginRequired(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == "ITEM_LOGIN_REQUIRED"
}
