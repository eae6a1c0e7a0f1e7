package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/rulekeeper/internal/types"
)

// Error mapping at the transport edge:
//
//	malformed rule JSON, bad node/group type   INVALID_ARGUMENT
//	unknown entity type, oversized input       INVALID_ARGUMENT
//	rule id absent or owned by another tenant  NOT_FOUND
//	stored expression no longer decodes        DATA_LOSS
//	context deadline / cancellation            DEADLINE_EXCEEDED / CANCELED
//	anything else from storage                 UNAVAILABLE
//
// Auth errors are mapped in the auth interceptor. Malformed entity JSON is
// never an error; it comes back as a non-matching result.

func invalidArgument(err error) error {
	return status.Error(codes.InvalidArgument, err.Error())
}

// storeError maps a RuleStore error onto a status.
func storeError(err error) error {
	switch {
	case errors.Is(err, types.ErrRuleNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Unavailable, err.Error())
	}
}
