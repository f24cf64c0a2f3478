package plan

import "errors"

var (
	ErrPlanNotFound             = errors.New("plan not found")
	ErrUnknownPlanID            = errors.New("unknown plan identifier")
	ErrInvalidPlanConfiguration = errors.New("invalid plan configuration")
	ErrFailedToLoadPlans        = errors.New("failed to load plans")
)
