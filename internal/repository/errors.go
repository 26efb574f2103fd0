// Package repository defines the data access layer and the error values
// shared by every repository.  These sentinel values allow handlers to map a
// failure onto an HTTP status with errors.Is.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	// ErrForbidden is returned when the caller attempts an operation on a
	// resource they do not own.  Handlers translate it into 403.
	ErrForbidden = errors.New("forbidden")

	// ErrConflict is returned when an update was based on an outdated copy of
	// the resource.  Handlers translate it into 409.
	ErrConflict = errors.New("conflict")

	// ErrEmailExists is returned by UserRepo.Create for a duplicate email.
	ErrEmailExists = errors.New("email already exists")

	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")

	// ErrTokenInvalid is returned for unknown, revoked or expired refresh tokens.
	ErrTokenInvalid = errors.New("refresh token invalid")

	// ErrEventNotFound is returned when an event does not exist.
	ErrEventNotFound = errors.New("event not found")

	// ErrRunNotFound is returned when an optimization run does not exist.
	ErrRunNotFound = errors.New("optimization run not found")

	// ErrRunState is returned when a run is not in a state that allows the
	// requested transition, such as applying a discarded run.
	ErrRunState = errors.New("optimization run is not in a valid state for this operation")

	// ErrStaleRun is returned when a run was computed from an older version of
	// its event.
	ErrStaleRun = errors.New("optimization run is stale: the event changed after it was computed")
)

// isDuplicateKey reports whether err is a MySQL duplicate entry error (1062).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == 1062
	}
	return err != nil && strings.Contains(err.Error(), "1062")
}
