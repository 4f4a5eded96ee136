package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-upload/pkg/simpleupload"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// TxBeginner starts transactions. *pgxpool.Pool and *pgx.Conn implement it.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

const schema = `
	CREATE TABLE IF NOT EXISTS upload_record (
		id TEXT PRIMARY KEY,
		fields JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// Repository implements simpleupload.Repository using PostgreSQL
type Repository struct {
	db   DBTX
	inTx bool
}

// New creates a new PostgreSQL repository
func New(db DBTX) *Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with connection pool
func NewWithPool(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool}
}

// Migrate creates the upload_record table if it does not exist
func (r *Repository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schema); err != nil {
		return r.handlePostgresError("migrate", err)
	}
	return nil
}

// RunInTx runs fn with a repository bound to a single transaction. Reference
// counts taken through that repository lock the matching rows until commit, so
// a concurrent delete of a record sharing the file waits for this one.
func (r *Repository) RunInTx(ctx context.Context, fn func(repo *Repository) error) error {
	if r.inTx {
		return fn(r)
	}
	beginner, ok := r.db.(TxBeginner)
	if !ok {
		return errors.New("repository connection does not support transactions")
	}
	return pgx.BeginFunc(ctx, beginner, func(tx pgx.Tx) error {
		return fn(&Repository{db: tx, inTx: true})
	})
}

// Error handling helper
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("record already exists")
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return simpleupload.ErrRecordNotFound
	}

	return fmt.Errorf("database error in %s: %w", operation, err)
}

func (r *Repository) SaveRecord(ctx context.Context, record *simpleupload.Record) error {
	if record.ID() == "" {
		return simpleupload.ErrInvalidRecordID
	}

	query := `
		INSERT INTO upload_record (id, fields, created_at, updated_at)
		VALUES ($1, $2, now(), now())
		ON CONFLICT (id) DO UPDATE SET
			fields = EXCLUDED.fields,
			updated_at = EXCLUDED.updated_at`

	if _, err := r.db.Exec(ctx, query, record.ID(), record.Fields()); err != nil {
		return r.handlePostgresError("save record", err)
	}
	return nil
}

func (r *Repository) GetRecord(ctx context.Context, id string) (*simpleupload.Record, error) {
	query := `SELECT id, fields FROM upload_record WHERE id = $1`

	var recordID string
	var fields map[string]any
	if err := r.db.QueryRow(ctx, query, id).Scan(&recordID, &fields); err != nil {
		return nil, r.handlePostgresError("get record", err)
	}
	return simpleupload.NewRecord(recordID, fields), nil
}

func (r *Repository) DeleteRecord(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM upload_record WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete record", err)
	}
	if tag.RowsAffected() == 0 {
		return simpleupload.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) ListRecords(ctx context.Context) ([]*simpleupload.Record, error) {
	rows, err := r.db.Query(ctx, `SELECT id, fields FROM upload_record ORDER BY id`)
	if err != nil {
		return nil, r.handlePostgresError("list records", err)
	}
	defer rows.Close()

	var records []*simpleupload.Record
	for rows.Next() {
		var id string
		var fields map[string]any
		if err := rows.Scan(&id, &fields); err != nil {
			return nil, err
		}
		records = append(records, simpleupload.NewRecord(id, fields))
	}
	if err := rows.Err(); err != nil {
		return nil, r.handlePostgresError("list records", err)
	}

	return records, nil
}

// CountReferences counts the records whose field holds value. Inside RunInTx
// the matching rows stay locked until the transaction ends.
func (r *Repository) CountReferences(ctx context.Context, field, value string) (int, error) {
	query := `SELECT id FROM upload_record WHERE fields->>$1 = $2`
	if r.inTx {
		query += ` FOR UPDATE`
	}

	rows, err := r.db.Query(ctx, query, field, value)
	if err != nil {
		return 0, r.handlePostgresError("count references", err)
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		count++
	}
	if err := rows.Err(); err != nil {
		return 0, r.handlePostgresError("count references", err)
	}
	return count, nil
}
