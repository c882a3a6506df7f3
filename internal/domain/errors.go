package domain

import "fmt"

// ValidationError reports a missing or malformed field. The request is
// permanently rejected; retrying without changes cannot succeed.
type ValidationError struct {
	Field  string
	Reason string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NotFoundError reports an unknown container, work item, member or blocker.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// AuthorizationError reports an actor invoking an action their role does not
// allow. Checked in the engine, never left to the UI.
type AuthorizationError struct {
	Action string
	Reason string
}

func (e AuthorizationError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Action, e.Reason)
	}
	return fmt.Sprintf("not authorized for %s", e.Action)
}

// ConflictError reports a duplicate active membership or a stale concurrent
// write. Clients resolve it by reloading and retrying.
type ConflictError struct {
	Reason string
}

func (e ConflictError) Error() string { return e.Reason }

// InvalidTransitionError reports an illegal status edge.
type InvalidTransitionError struct {
	From string
	To   string
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// StorageError wraps a failure in an external collaborator (attachment store).
// Retryable by the caller; the core never retries internally.
type StorageError struct {
	Op  string
	Err error
}

func (e StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e StorageError) Unwrap() error { return e.Err }
