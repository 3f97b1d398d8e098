package errors_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	svcErr "github.com/oggyb/campus-match/internal/errors"
)

func TestMapValidationCarriesField(t *testing.T) {
	err := svcErr.Map(svcErr.Validation("nickname", "Nickname is too short"))

	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.InvalidArgument, st.Code())
	assert.Equal(t, "Nickname is too short", st.Message())

	require.Len(t, st.Details(), 1)
	br, ok := st.Details()[0].(*errdetails.BadRequest)
	require.True(t, ok)
	assert.Equal(t, "nickname", br.GetFieldViolations()[0].GetField())
}

func TestMapRateLimitedCarriesRetryInfo(t *testing.T) {
	err := svcErr.Map(svcErr.RateLimited(1500 * time.Millisecond))

	st, _ := status.FromError(err)
	assert.Equal(t, codes.ResourceExhausted, st.Code())
	assert.Contains(t, st.Message(), "2 seconds")

	require.Len(t, st.Details(), 1)
	info, ok := st.Details()[0].(*errdetails.RetryInfo)
	require.True(t, ok)
	assert.Equal(t, 1500*time.Millisecond, info.GetRetryDelay().AsDuration())
}

func TestMapBannedCarriesReason(t *testing.T) {
	st, _ := status.FromError(svcErr.Map(svcErr.Banned()))
	assert.Equal(t, codes.Unauthenticated, st.Code())

	require.Len(t, st.Details(), 1)
	info, ok := st.Details()[0].(*errdetails.ErrorInfo)
	require.True(t, ok)
	assert.Equal(t, svcErr.ReasonAccountBanned, info.GetReason())
}

func TestMapInfraErrors(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("load: %w", gorm.ErrRecordNotFound), codes.NotFound},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{context.Canceled, codes.Canceled},
		{svcErr.ModerationConflict("profile is not approved"), codes.FailedPrecondition},
		{svcErr.PermissionDenied("admins only"), codes.PermissionDenied},
		{svcErr.Persistence("insert swipe", fmt.Errorf("connection refused")), codes.Unavailable},
	}
	for _, tc := range cases {
		st, _ := status.FromError(svcErr.Map(tc.err))
		assert.Equal(t, tc.code, st.Code(), "err=%v", tc.err)
	}
}

func TestPersistenceHidesCause(t *testing.T) {
	err := svcErr.Persistence("insert swipe", fmt.Errorf("dial tcp 10.0.0.1:3306: refused"))

	st, _ := status.FromError(svcErr.Map(err))
	assert.Equal(t, svcErr.GenericMessage, st.Message())
	assert.Equal(t, svcErr.GenericMessage, svcErr.PublicMessage(err))
	assert.Equal(t, http.StatusServiceUnavailable, svcErr.HTTPStatus(err))
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, svcErr.HTTPStatus(svcErr.InvalidArgument("bad")))
	assert.Equal(t, http.StatusTooManyRequests, svcErr.HTTPStatus(svcErr.RateLimited(time.Second)))
	assert.Equal(t, http.StatusUnauthorized, svcErr.HTTPStatus(svcErr.Banned()))
	assert.Equal(t, http.StatusForbidden, svcErr.HTTPStatus(svcErr.PermissionDenied("no")))
	assert.Equal(t, http.StatusConflict, svcErr.HTTPStatus(svcErr.ModerationConflict("no")))
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("submit: %w", svcErr.Validation("photos", "At least one photo is required"))
	assert.True(t, svcErr.Is(err, svcErr.KindValidation))
	assert.False(t, svcErr.Is(nil, svcErr.KindValidation))
	assert.Equal(t, svcErr.KindInternal, svcErr.KindOf(fmt.Errorf("boom")))
}
