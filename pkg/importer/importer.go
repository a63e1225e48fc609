// Package importer turns inbound hardware, surety and user records into
// database rows. Each batch is written in one transaction and either lands
// completely or not at all.
package importer

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"surety-registry-api/internal/logging"
	"surety-registry-api/internal/models"
	"surety-registry-api/internal/store"
)

var (
	// ErrEmptyPayload is returned when a batch contains no records at all.
	ErrEmptyPayload = errors.New("no records to import")
	// ErrUserNotFound is returned when the acting user does not exist.
	ErrUserNotFound = errors.New("user not found")
)

// WriteError is one document the database refused during a bulk write.
type WriteError struct {
	Index int
	Err   error
}

// BulkWriteError aborts a batch. Every refused document is listed; none of
// the batch is persisted.
type BulkWriteError struct {
	Failures []WriteError
}

func (e *BulkWriteError) Error() string {
	msgs := make([]string, 0, len(e.Failures))
	for _, f := range e.Failures {
		msgs = append(msgs, fmt.Sprintf("document %d: %v", f.Index, f.Err))
	}
	return fmt.Sprintf("bulk write failed for %d document(s): %s", len(e.Failures), strings.Join(msgs, "; "))
}

func (e *BulkWriteError) Unwrap() []error {
	errs := make([]error, 0, len(e.Failures))
	for _, f := range e.Failures {
		errs = append(errs, f.Err)
	}
	return errs
}

// RowError describes a record that was skipped.
type RowError struct {
	Index   int    `json:"index"`
	Row     int    `json:"row,omitempty"`
	Message string `json:"message"`
}

// Summary is the outcome of a committed batch.
type Summary struct {
	Kind      string     `json:"kind"`
	Submitted int        `json:"submitted"`
	Skipped   int        `json:"skipped"`
	Skips     []RowError `json:"skips,omitempty"`
	DryRun    bool       `json:"dryRun"`
}

// Options tunes a single import call.
type Options struct {
	// DryRun shapes and writes everything, then rolls back.
	DryRun bool
	// RowNumbers labels skip diagnostics with spreadsheet row numbers,
	// indexed like the records slice.
	RowNumbers []int
}

func (o Options) row(i int) int {
	if i < len(o.RowNumbers) {
		return o.RowNumbers[i]
	}
	return 0
}

// Importer runs batches against DB.
type Importer struct {
	DB *sql.DB
}

func New(db *sql.DB) *Importer {
	return &Importer{DB: db}
}

// ImportHardware shapes records for userID and inserts the result as one
// batch. Records without hardware items are skipped and logged.
func (im *Importer) ImportHardware(ctx context.Context, records []map[string]any, userID int64) (*Summary, error) {
	return im.ImportHardwareWithOptions(ctx, records, userID, Options{})
}

func (im *Importer) ImportHardwareWithOptions(ctx context.Context, records []map[string]any, userID int64, opts Options) (*Summary, error) {
	docs := make([]models.HardwareRecord, 0, len(records))
	return im.run(ctx, "hardware", len(records), userID, opts,
		func(i int) (string, error) {
			doc, err := ShapeHardware(records[i], userID)
			if errors.Is(err, ErrNoLineItems) {
				return "Record skipped: missing or empty hardwareItems", nil
			}
			if err != nil {
				return "", err
			}
			docs = append(docs, doc)
			return "", nil
		},
		func() int { return len(docs) },
		func(ctx context.Context, tx *sql.Tx, i int) error {
			return store.InsertHardware(ctx, tx, &docs[i])
		},
	)
}

// ImportSureties validates each record and inserts the valid ones as sureties
// created by userID. Invalid rows are skipped with the validation message.
func (im *Importer) ImportSureties(ctx context.Context, records []map[string]any, userID int64, opts Options) (*Summary, error) {
	docs := make([]models.Surety, 0, len(records))
	return im.run(ctx, "sureties", len(records), userID, opts,
		func(i int) (string, error) {
			var req models.SuretyRequest
			if err := decodeRecord(records[i], &req); err != nil {
				return err.Error(), nil
			}
			if err := models.Validate(req); err != nil {
				return err.Error(), nil
			}
			docs = append(docs, req.ToSurety(userID))
			return "", nil
		},
		func() int { return len(docs) },
		func(ctx context.Context, tx *sql.Tx, i int) error {
			return store.InsertSurety(ctx, tx, &docs[i])
		},
	)
}

// ImportUsers validates and hashes each account record and inserts the
// valid ones. actorID is the administrator running the import.
func (im *Importer) ImportUsers(ctx context.Context, records []map[string]any, actorID int64, opts Options) (*Summary, error) {
	docs := make([]models.User, 0, len(records))
	return im.run(ctx, "users", len(records), actorID, opts,
		func(i int) (string, error) {
			var req models.CreateUserRequest
			if err := decodeRecord(records[i], &req); err != nil {
				return err.Error(), nil
			}
			if err := models.Validate(req); err != nil {
				return err.Error(), nil
			}
			u, err := req.ToUser()
			if err != nil {
				return "", err
			}
			docs = append(docs, u)
			return "", nil
		},
		func() int { return len(docs) },
		func(ctx context.Context, tx *sql.Tx, i int) error {
			return store.InsertUser(ctx, tx, &docs[i])
		},
	)
}

// ImportTable imports a spreadsheet read by ReadWorkbook, dispatching on kind.
func (im *Importer) ImportTable(ctx context.Context, kind string, t *Table, actorID int64, dryRun bool) (*Summary, error) {
	opts := Options{DryRun: dryRun, RowNumbers: t.Rows}
	switch kind {
	case KindHardware:
		return im.ImportHardwareWithOptions(ctx, t.Records, actorID, opts)
	case KindSureties:
		return im.ImportSureties(ctx, t.Records, actorID, opts)
	case KindUsers:
		return im.ImportUsers(ctx, t.Records, actorID, opts)
	}
	return nil, fmt.Errorf("unknown import kind %q", kind)
}

// decodeRecord fills dst from rec through dst's JSON tags.
func decodeRecord(rec map[string]any, dst any) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return fmt.Errorf("invalid record: %w", err)
	}
	return nil
}

// run drives one batch: verify the actor, shape every input, then write the
// shaped documents behind per-document savepoints. shape returns a non-empty
// skip reason for inputs that are dropped.
func (im *Importer) run(
	ctx context.Context,
	kind string,
	n int,
	actorID int64,
	opts Options,
	shape func(i int) (skip string, err error),
	count func() int,
	insert func(ctx context.Context, tx *sql.Tx, i int) error,
) (*Summary, error) {
	if n == 0 {
		return nil, ErrEmptyPayload
	}
	log := logging.FromContext(ctx).With(zap.String("kind", kind), zap.Int64("user_id", actorID))

	tx, err := im.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	ok, err := store.UserExists(ctx, tx, actorID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrUserNotFound
	}

	summary := &Summary{Kind: kind, DryRun: opts.DryRun}
	for i := 0; i < n; i++ {
		reason, err := shape(i)
		if err != nil {
			return nil, err
		}
		if reason == "" {
			continue
		}
		summary.Skipped++
		summary.Skips = append(summary.Skips, RowError{Index: i, Row: opts.row(i), Message: reason})
		log.Warn("import record skipped", zap.Int("index", i), zap.Int("row", opts.row(i)), zap.String("reason", reason))
	}

	docs := count()
	if docs > 0 {
		if err := bulkInsert(ctx, tx, docs, insert); err != nil {
			return nil, err
		}
	}
	summary.Submitted = docs

	if opts.DryRun {
		return summary, nil
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	log.Info("import committed", zap.Int("submitted", summary.Submitted), zap.Int("skipped", summary.Skipped))
	return summary, nil
}

// bulkInsert writes n documents without stopping at the first failure. A
// refused document is rolled back to its savepoint so the transaction stays
// usable; any refusal fails the whole batch.
func bulkInsert(ctx context.Context, tx *sql.Tx, n int, insert func(ctx context.Context, tx *sql.Tx, i int) error) error {
	var failures []WriteError
	for i := 0; i < n; i++ {
		sp := fmt.Sprintf("doc_%d", i)
		if _, err := tx.ExecContext(ctx, "SAVEPOINT "+sp); err != nil {
			return fmt.Errorf("savepoint: %w", err)
		}
		if err := insert(ctx, tx, i); err != nil {
			failures = append(failures, WriteError{Index: i, Err: err})
			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+sp); rbErr != nil {
				return fmt.Errorf("rollback to savepoint: %w", rbErr)
			}
			continue
		}
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+sp); err != nil {
			return fmt.Errorf("release savepoint: %w", err)
		}
	}
	if len(failures) > 0 {
		return &BulkWriteError{Failures: failures}
	}
	return nil
}
