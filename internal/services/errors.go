package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/desertthunder/ytpa/internal/shared"
	"google.golang.org/api/googleapi"
)

// classify maps an API error onto the shared sentinels, keeping the original error in the chain.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return fmt.Errorf("%w: %s: %w", shared.ErrTransientFetch, op, err)
	}

	reason := errorReason(gerr)
	switch {
	case reason == "quotaExceeded" || reason == "dailyLimitExceeded":
		return fmt.Errorf("%w: %s: %w", shared.ErrQuotaExceeded, op, err)
	case reason == "rateLimitExceeded" || reason == "userRateLimitExceeded",
		gerr.Code == http.StatusTooManyRequests,
		gerr.Code == http.StatusConflict,
		gerr.Code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %s: %w", shared.ErrTransientFetch, op, err)
	case gerr.Code == http.StatusNotFound:
		return fmt.Errorf("%w: %s: %w", shared.ErrNotFound, op, err)
	case gerr.Code == http.StatusBadRequest && isInvalidValue(gerr, reason):
		return fmt.Errorf("%w: %s: %w", shared.ErrNotFound, op, err)
	case gerr.Code == http.StatusUnauthorized, gerr.Code == http.StatusForbidden:
		return fmt.Errorf("%w: %s: %w", shared.ErrNotAuthenticated, op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

func errorReason(gerr *googleapi.Error) string {
	for _, item := range gerr.Errors {
		if item.Reason != "" {
			return item.Reason
		}
	}
	return ""
}

func isInvalidValue(gerr *googleapi.Error, reason string) bool {
	if reason == "invalidValue" {
		return true
	}
	return strings.Contains(strings.ToLower(gerr.Message), "invalid value")
}
