package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/uptrace/bun"
)

const defaultQueryTimeout = 10 * time.Second

// BaseRepository provides common repository functionality
type BaseRepository struct {
	db             *bun.DB
	defaultTimeout time.Duration
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *bun.DB) *BaseRepository {
	return &BaseRepository{
		db:             db,
		defaultTimeout: defaultQueryTimeout,
	}
}

// RepositoryError represents a repository-level error
type RepositoryError struct {
	Operation string
	Entity    string
	Err       error
}

func (re *RepositoryError) Error() string {
	return fmt.Sprintf("repository error during %s for %s: %v", re.Operation, re.Entity, re.Err)
}

func (re *RepositoryError) Unwrap() error {
	return re.Err
}

// NotFoundError represents an entity not found error
type NotFoundError struct {
	Entity string
	ID     interface{}
}

func (nfe *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %v not found", nfe.Entity, nfe.ID)
}

// SchemaError reports a backing store whose schema is behind the
// application, typically a missing column. Callers are expected to degrade
// gracefully rather than fail the user-facing operation.
type SchemaError struct {
	Entity string
	Err    error
}

func (se *SchemaError) Error() string {
	return fmt.Sprintf("schema mismatch for %s: %v", se.Entity, se.Err)
}

func (se *SchemaError) Unwrap() error {
	return se.Err
}

// NetworkError wraps transient connectivity failures.
type NetworkError struct {
	Operation string
	Err       error
}

func (ne *NetworkError) Error() string {
	return fmt.Sprintf("network error during %s: %v", ne.Operation, ne.Err)
}

func (ne *NetworkError) Unwrap() error {
	return ne.Err
}

// UnauthorizedError reports missing or rejected credentials.
type UnauthorizedError struct {
	Err error
}

func (ue *UnauthorizedError) Error() string {
	return fmt.Sprintf("unauthorized: %v", ue.Err)
}

func (ue *UnauthorizedError) Unwrap() error {
	return ue.Err
}

// sqlState matches pgdriver.Error and pgconn errors without depending on
// their concrete types.
type sqlState interface {
	error
	Field(byte) string
}

// Postgres SQLSTATE classes this layer cares about.
const (
	stateUndefinedColumn       = "42703"
	stateUndefinedTable        = "42P01"
	stateInvalidPassword       = "28P01"
	stateInvalidAuthorization  = "28000"
	stateInsufficientPrivilege = "42501"
)

// WithTimeout creates a context with the default timeout
func (br *BaseRepository) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, br.defaultTimeout)
}

// HandleError maps driver errors onto the repository taxonomy:
// NotFoundError, SchemaError, NetworkError, UnauthorizedError, with
// RepositoryError as the catch-all.
func (br *BaseRepository) HandleError(operation, entity string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{Entity: entity, ID: "unknown"}
	}

	var state sqlState
	if errors.As(err, &state) {
		switch state.Field('C') {
		case stateUndefinedColumn, stateUndefinedTable:
			return &SchemaError{Entity: entity, Err: err}
		case stateInvalidPassword, stateInvalidAuthorization, stateInsufficientPrivilege:
			return &UnauthorizedError{Err: err}
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return &NetworkError{Operation: operation, Err: err}
	}

	return &RepositoryError{
		Operation: operation,
		Entity:    entity,
		Err:       err,
	}
}

// HandleErrorWithID standardizes error handling with specific ID
func (br *BaseRepository) HandleErrorWithID(operation, entity string, id interface{}, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &NotFoundError{Entity: entity, ID: id}
	}
	return br.HandleError(operation, entity, err)
}

// Transaction executes a function within a database transaction
func (br *BaseRepository) Transaction(ctx context.Context, fn func(context.Context, bun.Tx) error) error {
	timeoutCtx, cancel := br.WithTimeout(ctx)
	defer cancel()

	return br.db.RunInTx(timeoutCtx, nil, fn)
}

// DB returns the underlying database handle
func (br *BaseRepository) DB() *bun.DB {
	return br.db
}

// IsNotFound checks if an error is a NotFoundError
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// IsSchemaError checks if an error is a SchemaError
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// IsNetworkError checks if an error is a NetworkError
func IsNetworkError(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsUnauthorized checks if an error is an UnauthorizedError
func IsUnauthorized(err error) bool {
	var ue *UnauthorizedError
	return errors.As(err, &ue)
}
