package store

import "errors"

// Sentinel errors returned by repository methods to signal well-known failure
// conditions. Callers should use [errors.Is] to match against these values.
var (
	// ErrVaultNotFound is returned when a query targets a vault that does
	// not exist in the database.
	ErrVaultNotFound = errors.New("vault was not found")

	// ErrVaultAlreadyExists is returned when vault creation collides with
	// an existing vault id.
	ErrVaultAlreadyExists = errors.New("vault already exists")

	// ErrItemNotFound is returned when a query or update targets a vault
	// item that does not exist in the database.
	ErrItemNotFound = errors.New("vault item was not found")

	// ErrVersionConflict is returned when an optimistic-concurrency check
	// fails: the version supplied by the client is behind the version
	// stored in the database, meaning another device has modified the
	// record since the client last synchronized. Stored state is left
	// unchanged.
	ErrVersionConflict = errors.New("vault item version conflict occurred")

	// ErrDirtyLocalItem is returned by the local store when a remote
	// tombstone targets an item that still carries unpushed local
	// changes. The row is left untouched; the caller decides whether the
	// edit or the delete wins.
	ErrDirtyLocalItem = errors.New("local item has unpushed changes")

	// ErrWatermarkRegression is returned by the local store when a stored
	// watermark is ahead of the coordinator-reported clock, which
	// indicates reset or corrupted client state. The sync cycle must
	// surface it instead of silently missing updates.
	ErrWatermarkRegression = errors.New("sync watermark regression detected")
)

// Low-level database operation errors. These are returned (or wrapped) by
// repository methods when a SQL-level operation fails before any domain
// logic can be applied.
var (
	// ErrBuildingSQLQuery is returned when constructing a parameterised
	// SQL query fails.
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a query against the
	// database fails.
	ErrExecutingQuery = errors.New("error executing sql query")

	// ErrBeginningTransaction is returned when the database driver cannot
	// start a new transaction.
	ErrBeginningTransaction = errors.New("failed to begin transaction")

	// ErrCommitingTransaction is returned when committing an open
	// transaction fails. The transaction is considered rolled back.
	ErrCommitingTransaction = errors.New("failed to commit transaction")

	// ErrScanningRow is returned when scanning column values from a single
	// result row fails.
	ErrScanningRow = errors.New("failed to scan row")

	// ErrScanningRows is returned when scanning column values during
	// multi-row iteration fails.
	ErrScanningRows = errors.New("failed to scan rows")
)
