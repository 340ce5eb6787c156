package cli

import (
	"errors"

	"github.com/pyritedb/pyrite/internal/identity"
	"github.com/pyritedb/pyrite/internal/pattern"
	"github.com/pyritedb/pyrite/internal/resolve"
	"github.com/pyritedb/pyrite/internal/schema"
	"github.com/pyritedb/pyrite/internal/sqlgen"
	"github.com/pyritedb/pyrite/internal/store"
)

// errorCode maps domain errors onto stable response codes.
func errorCode(err error) string {
	var (
		syntaxErr   *pattern.SyntaxError
		pathErr     *resolve.UnresolvedPathError
		mismatchErr *sqlgen.TypeMismatchError
		conflictErr *schema.ConflictError
		nameErr     *store.NameConflictError
		identErr    *identity.AmbiguityError
	)
	switch {
	case errors.As(err, &syntaxErr):
		return ErrPatternSyntax
	case errors.As(err, &pathErr):
		return ErrUnresolvedPath
	case errors.As(err, &mismatchErr),
		errors.Is(err, sqlgen.ErrNoApplicableComparisons):
		return ErrTypeMismatch
	case errors.As(err, &conflictErr):
		return ErrSchemaConflict
	case errors.As(err, &nameErr):
		return ErrNameConflict
	case errors.As(err, &identErr):
		return ErrIdentity
	case errors.Is(err, store.ErrUnknownView):
		return ErrViewNotFound
	default:
		return ErrDatabaseError
	}
}

// fail wraps handleError with the code derived from the error itself.
func fail(err error) error {
	return handleError(errorCode(err), err, "")
}
