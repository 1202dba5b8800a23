package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on Code so the sentinel values below work with errors.Is
// regardless of the detail a constructor attached.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// IsRetryable reports whether the caller may retry the same request unchanged.
func (e *DomainError) IsRetryable() bool {
	return e.Code == ErrCodeUpstream
}

const (
	ErrCodeInvalidAmount        = "INVALID_AMOUNT"
	ErrCodeInvalidIntent        = "INVALID_INTENT"
	ErrCodeProviderUnavailable  = "PROVIDER_UNAVAILABLE"
	ErrCodeProviderConfig       = "PROVIDER_CONFIG_ERROR"
	ErrCodeUpstream             = "UPSTREAM_ERROR"
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeVerificationMismatch = "VERIFICATION_MISMATCH"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
)

var (
	ErrInvalidAmount        = &DomainError{Code: ErrCodeInvalidAmount, Message: "invalid amount"}
	ErrInvalidIntent        = &DomainError{Code: ErrCodeInvalidIntent, Message: "invalid donation intent"}
	ErrProviderUnavailable  = &DomainError{Code: ErrCodeProviderUnavailable, Message: "provider unavailable"}
	ErrProviderConfig       = &DomainError{Code: ErrCodeProviderConfig, Message: "provider configuration error"}
	ErrUpstream             = &DomainError{Code: ErrCodeUpstream, Message: "upstream provider error"}
	ErrNotFound             = &DomainError{Code: ErrCodeNotFound, Message: "not found"}
	ErrVerificationMismatch = &DomainError{Code: ErrCodeVerificationMismatch, Message: "verification mismatch"}
	ErrRateLimited          = &DomainError{Code: ErrCodeRateLimited, Message: "rate limited"}
	ErrInvalidTransition    = &DomainError{Code: ErrCodeInvalidTransition, Message: "invalid transition"}
)

func NewInvalidAmountError(amount string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("invalid amount %q: must be a finite number greater than zero", amount),
	}
}

func NewUnsupportedCurrencyError(currency string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidIntent,
		Message: fmt.Sprintf("unsupported currency %q", currency),
	}
}

func NewInvalidIntentError(reason string) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidIntent,
		Message: reason,
	}
}

func NewProviderUnavailableError(provider ProviderID) *DomainError {
	return &DomainError{
		Code:    ErrCodeProviderUnavailable,
		Message: fmt.Sprintf("payment provider %s is not enabled", provider),
	}
}

func NewProviderConfigError(provider ProviderID, reason string) *DomainError {
	return &DomainError{
		Code:    ErrCodeProviderConfig,
		Message: fmt.Sprintf("payment provider %s is misconfigured: %s", provider, reason),
	}
}

func NewUpstreamError(provider ProviderID, err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeUpstream,
		Message: fmt.Sprintf("payment provider %s did not respond successfully", provider),
		Err:     err,
	}
}

func NewDonationNotFoundError(id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("donation %s not found", id),
	}
}

func NewReferenceMismatchError() *DomainError {
	return &DomainError{
		Code:    ErrCodeVerificationMismatch,
		Message: "payment reference does not match this donation",
	}
}

func NewAmountMismatchError(expected Money, confirmedMinor int64, confirmedCurrency Currency) *DomainError {
	return &DomainError{
		Code: ErrCodeVerificationMismatch,
		Message: fmt.Sprintf("provider confirmed %d %s, expected %d %s",
			confirmedMinor, confirmedCurrency, expected.MinorUnits(), expected.Currency),
	}
}

func NewProviderRejectedReferenceError(provider ProviderID, err error) *DomainError {
	return &DomainError{
		Code:    ErrCodeVerificationMismatch,
		Message: fmt.Sprintf("payment provider %s does not recognise the reference", provider),
		Err:     err,
	}
}

func NewRateLimitedError() *DomainError {
	return &DomainError{
		Code:    ErrCodeRateLimited,
		Message: "too many requests, slow down",
	}
}

func NewInvalidTransitionError(from, to PaymentStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
