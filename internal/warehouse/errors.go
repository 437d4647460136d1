package warehouse

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"bqstats/pkg/errors"
)

// classify maps a BigQuery client error onto the application error codes.
// Only an HTTP 404 (or a job error with reason notFound) becomes
// ErrCodeNotFound; callers rely on that to tell a missing object apart from
// a failed lookup.
func classify(err error, op string) *errors.AppError {
	message := fmt.Sprintf("BigQuery %s failed", op)

	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.Wrap(err, errors.ErrCodeTimeout, message).
			WithSuggestions("Increase --timeout")
	}

	var (
		appErr *errors.AppError
		apiErr *googleapi.Error
		jobErr *bigquery.Error
	)
	switch {
	case stderrors.As(err, &apiErr):
		appErr = errors.Wrap(err, codeForHTTP(apiErr.Code, firstReason(apiErr)), message).
			WithContext("http_status", apiErr.Code)
		if reason := firstReason(apiErr); reason != "" {
			appErr = appErr.WithContext("reason", reason)
		}
	case stderrors.As(err, &jobErr):
		appErr = errors.Wrap(err, codeForReason(jobErr.Reason), message).
			WithContext("reason", jobErr.Reason)
		if jobErr.Location != "" {
			appErr = appErr.WithContext("location", jobErr.Location)
		}
	default:
		return errors.Wrap(err, errors.ErrCodeWarehouse, message)
	}

	switch appErr.Code {
	case errors.ErrCodePermissionDenied:
		_ = appErr.WithSuggestions(
			"Grant the service account BigQuery Data Editor and Job User",
			"Check that the project id is correct",
		)
	case errors.ErrCodeServiceUnavailable:
		_ = appErr.AsRecoverable()
	case errors.ErrCodeQuotaExceeded:
		_ = appErr.AsRecoverable().WithSuggestions("Retry later or raise the project quota")
	}

	return appErr
}

func codeForHTTP(status int, reason string) errors.ErrorCode {
	if code, ok := reasonCodes[reason]; ok {
		return code
	}

	switch {
	case status == http.StatusNotFound:
		return errors.ErrCodeNotFound
	case status == http.StatusConflict:
		return errors.ErrCodeAlreadyExists
	case status == http.StatusUnauthorized:
		return errors.ErrCodeAuthenticationFailed
	case status == http.StatusForbidden:
		return errors.ErrCodePermissionDenied
	case status == http.StatusTooManyRequests:
		return errors.ErrCodeQuotaExceeded
	case status >= http.StatusInternalServerError:
		return errors.ErrCodeServiceUnavailable
	default:
		return errors.ErrCodeWarehouse
	}
}

// https://cloud.google.com/bigquery/docs/error-messages
var reasonCodes = map[string]errors.ErrorCode{
	"notFound":          errors.ErrCodeNotFound,
	"duplicate":         errors.ErrCodeAlreadyExists,
	"accessDenied":      errors.ErrCodePermissionDenied,
	"quotaExceeded":     errors.ErrCodeQuotaExceeded,
	"rateLimitExceeded": errors.ErrCodeQuotaExceeded,
	"invalidQuery":      errors.ErrCodeQueryInvalid,
	"backendError":      errors.ErrCodeServiceUnavailable,
	"internalError":     errors.ErrCodeServiceUnavailable,
}

func codeForReason(reason string) errors.ErrorCode {
	if code, ok := reasonCodes[reason]; ok {
		return code
	}
	return errors.ErrCodeWarehouse
}

func firstReason(apiErr *googleapi.Error) string {
	if len(apiErr.Errors) == 0 {
		return ""
	}
	return apiErr.Errors[0].Reason
}
