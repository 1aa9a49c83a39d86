package storage

import "errors"

// ErrPlanNotFound is returned when a user has no stored plan.
var ErrPlanNotFound = errors.New("plan not found")
