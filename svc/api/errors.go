package api

import (
	"errors"
	"strings"

	"github.com/dmitrymomot/memorialkit/core"
	"github.com/dmitrymomot/memorialkit/pkg/account"
	"github.com/dmitrymomot/memorialkit/pkg/billing"
	"github.com/dmitrymomot/memorialkit/pkg/entitlement"
	"github.com/dmitrymomot/memorialkit/svc/memorial"
)

// httpError joins err with the core error it is reported as, so the error
// handler renders the right status while still logging the cause.
func httpError(err error) error {
	switch {
	case errors.Is(err, memorial.ErrInvalidName):
		ve := core.NewValidationError()
		ve.Add("name", strings.TrimPrefix(err.Error(), memorial.ErrInvalidName.Error()+": "))
		return errors.Join(ve, err)
	case errors.Is(err, billing.ErrInvalidRequest):
		if ve := core.ValidationErrorFrom(err); !ve.IsEmpty() {
			return errors.Join(ve, err)
		}
		return errors.Join(core.ErrBadRequest, err)
	case errors.Is(err, billing.ErrInvalidPlan):
		return errors.Join(core.ErrInvalidPlan, err)
	case errors.Is(err, billing.ErrInvalidSignature):
		return errors.Join(core.ErrInvalidSignature, err)
	case errors.Is(err, billing.ErrInvalidPayload):
		return errors.Join(core.ErrBadRequest, err)
	case errors.Is(err, account.ErrMissingAccountID):
		return errors.Join(core.ErrUnauthorized, err)
	case errors.Is(err, account.ErrAccountNotFound), errors.Is(err, billing.ErrAccountNotFound):
		return errors.Join(core.ErrNotFound, err)
	case errors.Is(err, entitlement.ErrUpstreamUnavailable), errors.Is(err, billing.ErrStoreUnavailable):
		return errors.Join(core.ErrServiceUnavailable, err)
	default:
		return errors.Join(core.ErrInternalServerError, err)
	}
}

// denial returns the error code and message reported for a refused creation.
func denial(reason entitlement.Reason) (string, string) {
	switch reason {
	case entitlement.ReasonQuotaExceeded:
		return core.ErrQuotaExceeded.Key, "Memorial limit reached for the current plan."
	case entitlement.ReasonTrialExpired:
		return core.ErrTrialExpired.Key, "The trial has expired. Upgrade to keep creating memorials."
	default:
		return core.ErrForbidden.Key, "The current plan does not allow creating memorials."
	}
}
