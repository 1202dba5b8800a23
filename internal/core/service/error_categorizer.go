package service

import (
	"context"
	"errors"
	"net/http"

	"github.com/DanielPopoola/donation-gateway/internal/core/domain"
)

// ErrorCategory represents the nature of an error for retry logic
type ErrorCategory string

const (
	CategoryTransient      ErrorCategory = "TRANSIENT"
	CategoryPermanent      ErrorCategory = "PERMANENT"
	CategoryBusinessRule   ErrorCategory = "BUSINESS_RULE"
	CategoryClientError    ErrorCategory = "CLIENT_ERROR"
	CategoryInfrastructure ErrorCategory = "INFRASTRUCTURE"
)

// CategorizeError determines error category for retry and logging purposes
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryTransient
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		switch domainErr.Code {
		case domain.ErrCodeUpstream:
			return CategoryTransient
		case domain.ErrCodeProviderConfig:
			return CategoryInfrastructure
		case domain.ErrCodeInvalidAmount, domain.ErrCodeInvalidIntent,
			domain.ErrCodeNotFound, domain.ErrCodeRateLimited:
			return CategoryClientError
		case domain.ErrCodeVerificationMismatch, domain.ErrCodeInvalidTransition,
			domain.ErrCodeProviderUnavailable:
			return CategoryBusinessRule
		}
		return CategoryPermanent
	}

	if svcErr, ok := IsServiceError(err); ok {
		switch svcErr.Code {
		case ErrCodeInvalidInput:
			return CategoryClientError
		case ErrCodeTimeout:
			return CategoryTransient
		}
		return CategoryInfrastructure
	}

	return CategoryInfrastructure
}

// IsRetryable reports whether a caller may retry the same request unchanged.
func IsRetryable(err error) bool {
	return CategorizeError(err) == CategoryTransient
}

// ToHTTPStatus maps error to appropriate HTTP status code
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.HTTPStatus
	}

	switch {
	case errors.Is(err, domain.ErrInvalidAmount), errors.Is(err, domain.ErrInvalidIntent):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrVerificationMismatch), errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrUpstream):
		return http.StatusBadGateway
	case errors.Is(err, domain.ErrProviderUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrProviderConfig):
		return http.StatusInternalServerError
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	return http.StatusInternalServerError
}

// ToErrorCode clear error code for API responses
func ToErrorCode(err error) string {
	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.Code
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeTimeout
	}

	return ErrCodeInternal
}

// PublicMessage is the message safe to show a donor. Configuration and
// internal failures are reported generically.
func PublicMessage(err error) string {
	switch ToErrorCode(err) {
	case domain.ErrCodeProviderConfig, ErrCodeInternal:
		return "The payment service is temporarily unavailable. Please try again later."
	case domain.ErrCodeUpstream, ErrCodeTimeout:
		return "The payment provider did not respond. Please try again."
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Message
	}
	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.Message
	}
	return "An internal error occurred"
}
