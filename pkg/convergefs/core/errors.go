package core

import "fmt"

// ValidationError reports an invalid declaration for an entity. It is raised
// at declaration time and aborts that entity's setup only.
type ValidationError struct {
	Path   string
	Reason string
	Cause  error
}

func (e *ValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("validation error for %s: %s: %v", e.Path, e.Reason, e.Cause)
	}
	return fmt.Sprintf("validation error for %s: %s", e.Path, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return e.Cause
}

// BackupError reports that a requested backup could not be produced. A write
// must never proceed past one of these.
type BackupError struct {
	Path   string
	Reason string
	Cause  error
}

func (e *BackupError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("backup failed for %s: %s: %v", e.Path, e.Reason, e.Cause)
	}
	return fmt.Sprintf("backup failed for %s: %s", e.Path, e.Reason)
}

func (e *BackupError) Unwrap() error {
	return e.Cause
}

// StaleArtifactError reports that a leftover artifact (old backup copy,
// orphaned temp file) could not be removed. The operation that hit it
// returns failure; the caller decides whether to continue with siblings.
type StaleArtifactError struct {
	Path  string
	Cause error
}

func (e *StaleArtifactError) Error() string {
	return fmt.Sprintf("could not remove stale artifact %s: %v", e.Path, e.Cause)
}

func (e *StaleArtifactError) Unwrap() error {
	return e.Cause
}

// SourceError reports a failure resolving or consuming a content source.
// Fatal for the entity's sourcing; unrelated siblings are unaffected.
type SourceError struct {
	URI    string
	Reason string
	Cause  error
}

func (e *SourceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("source %q: %s: %v", e.URI, e.Reason, e.Cause)
	}
	return fmt.Sprintf("source %q: %s", e.URI, e.Reason)
}

func (e *SourceError) Unwrap() error {
	return e.Cause
}

// ChildError reports a failure while implicitly creating a recursion-
// discovered child. It is caught at the recursion boundary: the child is
// dropped, siblings proceed.
type ChildError struct {
	Parent string
	Name   string
	Cause  error
}

func (e *ChildError) Error() string {
	return fmt.Sprintf("could not create child %q under %s: %v", e.Name, e.Parent, e.Cause)
}

func (e *ChildError) Unwrap() error {
	return e.Cause
}

// InternalError signals a violated engine invariant. Always fatal: it
// indicates a caller bug rather than a user-input problem.
type InternalError struct {
	Reason string
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("internal error: %s", e.Reason)
}
