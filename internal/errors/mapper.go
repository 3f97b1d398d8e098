// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/durationpb"
	"gorm.io/gorm"

	"github.com/oggyb/campus-match/internal/logger"
)

// GenericMessage is what users see for persistence and unexpected failures.
const GenericMessage = "something went wrong, please try again"

// ErrorDomain tags ErrorInfo details attached to gRPC statuses.
const ErrorDomain = "campusmatch"

// ReasonAccountBanned tells clients to drop the session and sign out.
const ReasonAccountBanned = "ACCOUNT_BANNED"

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindRateLimited
	KindModerationConflict
	KindBanned
	KindUnauthenticated
	KindPermissionDenied
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindRateLimited:
		return "rate_limited"
	case KindModerationConflict:
		return "moderation_conflict"
	case KindBanned:
		return "banned"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindPermissionDenied:
		return "permission_denied"
	case KindNotFound:
		return "not_found"
	default:
		return "internal"
	}
}

// Error is the service-level error returned by every domain operation.
// Transport layers turn it into a gRPC status (Map) or an HTTP code (HTTPStatus).
type Error struct {
	Kind       Kind
	Field      string
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports a rejected input. field may be empty.
func Validation(field, msg string) error {
	return &Error{Kind: KindValidation, Field: field, Message: msg}
}

// InvalidArgument is Validation without a field name.
func InvalidArgument(msg string) error {
	return Validation("", msg)
}

// RateLimited reports an exhausted quota with the time until the window resets.
func RateLimited(retryAfter time.Duration) error {
	secs := int64((retryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return &Error{
		Kind:       KindRateLimited,
		Message:    fmt.Sprintf("too many requests, try again in %d seconds", secs),
		RetryAfter: retryAfter,
	}
}

func ModerationConflict(msg string) error {
	return &Error{Kind: KindModerationConflict, Message: msg}
}

func Banned() error {
	return &Error{Kind: KindBanned, Message: "this account has been banned"}
}

func Unauthenticated(msg string) error {
	return &Error{Kind: KindUnauthenticated, Message: msg}
}

func PermissionDenied(msg string) error {
	return &Error{Kind: KindPermissionDenied, Message: msg}
}

func NotFound(msg string) error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Persistence wraps a storage failure. The cause is logged, never shown.
func Persistence(op string, err error) error {
	return &Error{Kind: KindInternal, Message: op, Err: err}
}

// KindOf classifies any error, including raw gorm and context errors.
func KindOf(err error) Kind {
	var e *Error
	switch {
	case err == nil:
		return KindInternal
	case errors.As(err, &e):
		return e.Kind
	case errors.Is(err, gorm.ErrRecordNotFound):
		return KindNotFound
	default:
		return KindInternal
	}
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Map converts domain/repo/infra errors into gRPC-friendly status errors.
// Keeps service layer clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	var e *Error
	if errors.As(err, &e) {
		switch e.Kind {
		case KindValidation:
			st := status.New(codes.InvalidArgument, e.Message)
			if e.Field != "" {
				st = attach(st, &errdetails.BadRequest{
					FieldViolations: []*errdetails.BadRequest_FieldViolation{
						{Field: e.Field, Description: e.Message},
					},
				})
			}
			return st.Err()
		case KindRateLimited:
			return attach(status.New(codes.ResourceExhausted, e.Message), &errdetails.RetryInfo{
				RetryDelay: durationpb.New(e.RetryAfter),
			}).Err()
		case KindModerationConflict:
			return status.Error(codes.FailedPrecondition, e.Message)
		case KindBanned:
			return attach(status.New(codes.Unauthenticated, e.Message), &errdetails.ErrorInfo{
				Reason: ReasonAccountBanned,
				Domain: ErrorDomain,
			}).Err()
		case KindUnauthenticated:
			return status.Error(codes.Unauthenticated, e.Message)
		case KindPermissionDenied:
			return status.Error(codes.PermissionDenied, e.Message)
		case KindNotFound:
			return status.Error(codes.NotFound, e.Message)
		}
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return status.Error(codes.NotFound, "record not found")

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")

	default:
		logger.L().Error("request failed", "err", err)
		return status.Error(codes.Unavailable, GenericMessage)
	}
}

// HTTPStatus picks the HTTP code for err.
func HTTPStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindModerationConflict:
		return http.StatusConflict
	case KindBanned, KindUnauthenticated:
		return http.StatusUnauthorized
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusServiceUnavailable
	}
}

// PublicMessage is the user-facing text for err.
func PublicMessage(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Kind != KindInternal {
		return e.Message
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "record not found"
	}
	return GenericMessage
}

func attach(st *status.Status, detail interface {
	ProtoMessage()
	Reset()
	String() string
}) *status.Status {
	withDetail, err := st.WithDetails(detail)
	if err != nil {
		return st
	}
	return withDetail
}
