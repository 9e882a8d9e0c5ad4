package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Platform errors
	ErrInvalidReference   = fmt.Errorf("invalid reference")
	ErrNotFound           = fmt.Errorf("resource not found")
	ErrTransientFetch     = fmt.Errorf("transient fetch failure")
	ErrQuotaExceeded      = fmt.Errorf("quota exceeded")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Persistence errors
	ErrSubscriptionNotFound  = fmt.Errorf("subscription not found")
	ErrDuplicateSubscription = fmt.Errorf("subscription already exists")
	ErrStaleWatermark        = fmt.Errorf("watermark would move backwards")
	ErrAlreadyRunning        = fmt.Errorf("another run holds the lock")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
