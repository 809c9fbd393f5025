package postgres

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes
const (
	// duplicateObjectCode is raised by CREATE ROLE for an existing role
	duplicateObjectCode = "42710"

	// insufficientPrivilegeCode is raised when the session role lacks a privilege
	insufficientPrivilegeCode = "42501"

	// dependentObjectsCode is raised when DROP hits objects that depend on the target
	dependentObjectsCode = "2BP01"

	// invalidCatalogNameCode is raised when the database does not exist
	invalidCatalogNameCode = "3D000"

	// invalidPasswordCode is raised on failed password authentication
	invalidPasswordCode = "28P01"
)

var (
	// ErrRoleExists is returned when a role being created already exists.
	ErrRoleExists = errors.New("role already exists")

	// ErrPermissionDenied is returned when the session role lacks a privilege.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrDependentObjects is returned when a drop is blocked by dependents,
	// typically a role that still owns objects outside the tenant schemas.
	ErrDependentObjects = errors.New("dependent objects exist")

	// ErrDatabaseNotFound is returned when the configured database is missing.
	ErrDatabaseNotFound = errors.New("database does not exist")

	// ErrAuthentication is returned when the server rejects the credentials.
	ErrAuthentication = errors.New("authentication failed")
)

var sentinels = map[string]error{
	duplicateObjectCode:       ErrRoleExists,
	insufficientPrivilegeCode: ErrPermissionDenied,
	dependentObjectsCode:      ErrDependentObjects,
	invalidCatalogNameCode:    ErrDatabaseNotFound,
	invalidPasswordCode:       ErrAuthentication,
}

// MapError wraps a PostgreSQL error with the matching sentinel. The
// original *pgconn.PgError stays reachable through errors.As.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if sentinel, ok := sentinels[pgErr.Code]; ok {
			return fmt.Errorf("%w: %w", sentinel, err)
		}
	}

	return err
}

// IsDuplicateObject checks if the given error is a duplicate_object error,
// such as creating a role that already exists.
func IsDuplicateObject(err error) bool {
	return hasCode(err, duplicateObjectCode)
}

// IsInsufficientPrivilege checks if the given error is a permission failure.
func IsInsufficientPrivilege(err error) bool {
	return hasCode(err, insufficientPrivilegeCode)
}

// IsDependentObjects checks if a DROP failed because other objects depend on the target.
func IsDependentObjects(err error) bool {
	return hasCode(err, dependentObjectsCode)
}

// IsInvalidCatalogName checks if the error reports a missing database.
func IsInvalidCatalogName(err error) bool {
	return hasCode(err, invalidCatalogNameCode)
}

// IsInvalidPassword checks if the error reports rejected credentials.
func IsInvalidPassword(err error) bool {
	return hasCode(err, invalidPasswordCode)
}

func hasCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
