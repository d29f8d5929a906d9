package flags

import "errors"

// Domain errors. Details are attached with errors.Join, so callers classify
// with errors.Is.
var (
	// ErrNotFound indicates a reference to a nonexistent organisation, project,
	// environment, identity, feature or feature state.
	ErrNotFound = errors.New("not found")

	// ErrConflict indicates a uniqueness violation: a duplicate
	// (feature, environment, identity) triple or a stale concurrent update.
	ErrConflict = errors.New("conflict")

	// ErrInvalidAssociation indicates a feature state requested for a feature
	// and an environment that belong to different projects.
	ErrInvalidAssociation = errors.New("feature and environment belong to different projects")

	// ErrValidation indicates malformed input.
	ErrValidation = errors.New("validation failed")

	// ErrUnavailable indicates an infrastructure failure of the store or cache.
	// It is never joined with a domain error.
	ErrUnavailable = errors.New("service unavailable")
)

// IsDomainError reports whether err is caused by the request rather than by
// the infrastructure.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrInvalidAssociation) ||
		errors.Is(err, ErrValidation)
}

func notFound(what string) error {
	return errors.Join(ErrNotFound, errors.New(what+" not found"))
}

func invalid(msg string) error {
	return errors.Join(ErrValidation, errors.New(msg))
}
