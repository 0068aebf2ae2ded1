package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrJobAlreadyCompleted is returned when an engine is invoked for a job in a
// terminal state. Callers treat it as a no-op, not a failure.
var ErrJobAlreadyCompleted = errors.New("job already completed")

// ErrPatchBlocked is returned when an additive-mode plan would require
// reducing a current value. The job never transitions to running.
var ErrPatchBlocked = errors.New("patch blocked: additive mode cannot reduce metrics")

var ErrValidationFailed = errors.New("plan validation failed")
