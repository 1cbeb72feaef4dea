package traderiser

import (
	"errors"
	"fmt"
	"strings"
)

// CodeInsufficientBalance is the structured error code for a stake the
// account cannot cover, when the remote side supplies one.
const CodeInsufficientBalance = "insufficient_balance"

// insufficientBalanceText is matched against error messages when no
// structured code is present. The platform currently reports
// "Insufficient balance for this trade" with no code.
const insufficientBalanceText = "Insufficient balance"

// APIError is a rejection returned by the remote platform.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("traderiser api error (status %d, code %s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("traderiser api error (status %d): %s", e.StatusCode, e.Message)
}

// errorBody mirrors the platform's error payloads. The client falls back
// through error, detail and message the same way the web client does.
type errorBody struct {
	Error   string `json:"error"`
	Detail  string `json:"detail"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

func (b *errorBody) text() string {
	switch {
	case b == nil:
		return ""
	case b.Error != "":
		return b.Error
	case b.Detail != "":
		return b.Detail
	default:
		return b.Message
	}
}

// IsInsufficientBalance reports whether err is a remote rejection caused by
// the account balance. A structured code wins; otherwise the message is
// matched by substring.
func IsInsufficientBalance(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code != "" {
		return apiErr.Code == CodeInsufficientBalance
	}
	return strings.Contains(apiErr.Message, insufficientBalanceText)
}

// ErrorMessage returns the user-facing text for err: the remote message for
// an APIError, a generic network message otherwise.
func ErrorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Failed to execute trade"
}
