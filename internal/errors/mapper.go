// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"
)

// Hard failures that cross the API boundary. Everything else is absorbed by
// the engines and replaced with a neutral default.
var (
	ErrQuotaExceeded       = errors.New("daily swipe limit reached")
	ErrInsufficientBalance = errors.New("insufficient diamonds")
	ErrNotLiked            = errors.New("this user has not liked you")
	ErrNotFound            = errors.New("user not found")
	ErrInvalidArgument     = errors.New("invalid argument")
)

// Map converts domain/infra errors into gRPC-friendly status errors.
// Keeps service layer clean by centralizing error mapping.
func Map(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}

	switch {
	case errors.Is(err, ErrQuotaExceeded):
		return status.Error(codes.ResourceExhausted, err.Error())

	case errors.Is(err, ErrInsufficientBalance):
		return status.Error(codes.FailedPrecondition, err.Error())

	case errors.Is(err, ErrNotLiked):
		return status.Error(codes.PermissionDenied, err.Error())

	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return status.Error(codes.NotFound, "record not found")

	case errors.Is(err, ErrInvalidArgument):
		return status.Error(codes.InvalidArgument, err.Error())

	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, "request timed out")

	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, "request was canceled")

	default:
		// fallback → bubble up error message for debugging
		return status.Error(codes.Internal, err.Error())
	}
}

// InvalidArgument creates a gRPC InvalidArgument error.
// Use this in service layer for bad input validation.
func InvalidArgument(msg string) error {
	return status.Error(codes.InvalidArgument, msg)
}

// Unavailable creates a gRPC Unavailable error for failed dependency checks.
func Unavailable(msg string) error {
	return status.Error(codes.Unavailable, msg)
}
