package warehouse

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"cloud.google.com/go/bigquery"
	"github.com/stretchr/testify/assert"
	"google.golang.org/api/googleapi"

	"bqstats/pkg/errors"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		want        errors.ErrorCode
		recoverable bool
	}{
		{
			name: "http not found",
			err:  &googleapi.Error{Code: http.StatusNotFound},
			want: errors.ErrCodeNotFound,
		},
		{
			name: "http conflict",
			err:  &googleapi.Error{Code: http.StatusConflict},
			want: errors.ErrCodeAlreadyExists,
		},
		{
			name: "forbidden",
			err:  &googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "accessDenied"}}},
			want: errors.ErrCodePermissionDenied,
		},
		{
			name:        "forbidden quota",
			err:         &googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "quotaExceeded"}}},
			want:        errors.ErrCodeQuotaExceeded,
			recoverable: true,
		},
		{
			name: "unauthorized",
			err:  &googleapi.Error{Code: http.StatusUnauthorized},
			want: errors.ErrCodeAuthenticationFailed,
		},
		{
			name:        "server error",
			err:         &googleapi.Error{Code: http.StatusServiceUnavailable},
			want:        errors.ErrCodeServiceUnavailable,
			recoverable: true,
		},
		{
			name: "bad request",
			err:  &googleapi.Error{Code: http.StatusBadRequest},
			want: errors.ErrCodeWarehouse,
		},
		{
			name: "wrapped http not found",
			err:  fmt.Errorf("metadata: %w", &googleapi.Error{Code: http.StatusNotFound}),
			want: errors.ErrCodeNotFound,
		},
		{
			name: "job error invalid query",
			err:  &bigquery.Error{Reason: "invalidQuery", Message: "Syntax error"},
			want: errors.ErrCodeQueryInvalid,
		},
		{
			name: "job error not found",
			err:  &bigquery.Error{Reason: "notFound", Location: "test-project.raw.__TABLES__"},
			want: errors.ErrCodeNotFound,
		},
		{
			name: "deadline",
			err:  fmt.Errorf("wait: %w", context.DeadlineExceeded),
			want: errors.ErrCodeTimeout,
		},
		{
			name: "transport error",
			err:  fmt.Errorf("dial tcp: connection refused"),
			want: errors.ErrCodeWarehouse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err, "test op")

			assert.Equal(t, tt.want, got.Code)
			assert.Equal(t, tt.recoverable, got.Recoverable)
			assert.ErrorIs(t, got, tt.err)
			assert.Contains(t, got.Message, "BigQuery test op failed")
		})
	}
}

func TestClassifyOnlyNotFoundIsNotFound(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusForbidden, http.StatusInternalServerError, http.StatusConflict} {
		err := classify(&googleapi.Error{Code: status}, "lookup")
		assert.False(t, errors.IsNotFound(err), "status %d", status)
	}
}

func TestClassifyContext(t *testing.T) {
	err := classify(&googleapi.Error{Code: http.StatusForbidden, Errors: []googleapi.ErrorItem{{Reason: "accessDenied"}}}, "lookup")

	assert.Equal(t, http.StatusForbidden, err.Context["http_status"])
	assert.Equal(t, "accessDenied", err.Context["reason"])
	assert.NotEmpty(t, err.Suggestions)
}
