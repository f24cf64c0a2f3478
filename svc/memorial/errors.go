package memorial

import (
	"errors"
	"fmt"

	"github.com/dmitrymomot/memorialkit/pkg/entitlement"
)

var (
	ErrNotEntitled      = errors.New("memorial: not entitled to create")
	ErrInvalidName      = errors.New("memorial: invalid name")
	ErrCreateFailed     = errors.New("memorial: failed to create")
	ErrCounterNotBumped = errors.New("memorial: created but usage counter was not incremented")
)

// DeniedError carries the entitlement decision that rejected a creation.
// errors.Is(err, ErrNotEntitled) matches it.
type DeniedError struct {
	Decision entitlement.Decision
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("%s: %s (%d of %d)", ErrNotEntitled, e.Decision.Reason, e.Decision.CurrentCount, e.Decision.MaxAllowed)
}

func (e *DeniedError) Is(target error) bool {
	return target == ErrNotEntitled
}
