package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const dbTimeout = 5 * time.Second

// Postgres is a Store implementation backed by a single jsonb documents table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a PostgreSQL-backed document store.
func NewPostgres(pool *pgxpool.Pool) (*Postgres, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is nil")
	}
	return &Postgres{pool: pool}, nil
}

// EnsureSchema creates the documents table if it does not exist.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS documents (
			collection  text        NOT NULL,
			key         text        NOT NULL,
			doc         jsonb       NOT NULL,
			updated_at  timestamptz NOT NULL DEFAULT now(),
			PRIMARY KEY (collection, key)
		)`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, collection, key string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	return pgGet(ctx, p.pool, collection, key, out, false)
}

func (p *Postgres) ListKeys(ctx context.Context, collection, prefix string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	return pgListKeys(ctx, p.pool, collection, prefix)
}

func (p *Postgres) Put(ctx context.Context, collection, key string, doc any) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	return pgPut(ctx, p.pool, collection, key, doc)
}

func (p *Postgres) Create(ctx context.Context, collection, key string, doc any) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	return pgCreate(ctx, p.pool, collection, key, doc)
}

func (p *Postgres) Increment(ctx context.Context, collection, key, field string, delta float64) (float64, error) {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()
	return pgIncrement(ctx, p.pool, collection, key, field, delta)
}

// RunTxn executes fn inside a pgx transaction. Reads lock their rows with
// SELECT ... FOR UPDATE so concurrent transactions over the same documents
// serialize; conditional creates resolve races on keys no read could lock.
func (p *Postgres) RunTxn(ctx context.Context, fn func(tx Txn) error) error {
	ctx, cancel := context.WithTimeout(ctx, dbTimeout)
	defer cancel()

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&postgresTxn{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type postgresTxn struct {
	tx pgx.Tx
}

func (t *postgresTxn) Get(ctx context.Context, collection, key string, out any) error {
	return pgGet(ctx, t.tx, collection, key, out, true)
}

func (t *postgresTxn) ListKeys(ctx context.Context, collection, prefix string) ([]string, error) {
	return pgListKeys(ctx, t.tx, collection, prefix)
}

func (t *postgresTxn) Put(ctx context.Context, collection, key string, doc any) error {
	return pgPut(ctx, t.tx, collection, key, doc)
}

func (t *postgresTxn) Create(ctx context.Context, collection, key string, doc any) (bool, error) {
	return pgCreate(ctx, t.tx, collection, key, doc)
}

func (t *postgresTxn) Increment(ctx context.Context, collection, key, field string, delta float64) (float64, error) {
	return pgIncrement(ctx, t.tx, collection, key, field, delta)
}

// rowQuerier is the minimal query surface shared by *pgxpool.Pool and pgx.Tx.
type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// execer adds Exec for writes; both *pgxpool.Pool and pgx.Tx satisfy it.
type execer interface {
	rowQuerier
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func pgGet(ctx context.Context, q rowQuerier, collection, key string, out any, forUpdate bool) error {
	query := `SELECT doc FROM documents WHERE collection = $1 AND key = $2`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var raw []byte
	err := q.QueryRow(ctx, query, collection, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%s/%s: %w", collection, key, ErrNotFound)
		}
		return fmt.Errorf("get %s/%s: %w", collection, key, err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s/%s: %w", collection, key, err)
	}
	return nil
}

func pgListKeys(ctx context.Context, q rowQuerier, collection, prefix string) ([]string, error) {
	rows, err := q.Query(ctx,
		`SELECT key FROM documents
		 WHERE collection = $1 AND key LIKE $2 || '%'
		 ORDER BY key ASC`,
		collection, prefix,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate keys: %w", err)
	}
	return keys, nil
}

func pgPut(ctx context.Context, q execer, collection, key string, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}

	_, err = q.Exec(ctx,
		`INSERT INTO documents (collection, key, doc)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (collection, key)
		 DO UPDATE SET doc = EXCLUDED.doc, updated_at = now()`,
		collection, key, raw,
	)
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, key, err)
	}
	return nil
}

func pgCreate(ctx context.Context, q execer, collection, key string, doc any) (bool, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return false, fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}

	cmd, err := q.Exec(ctx,
		`INSERT INTO documents (collection, key, doc)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (collection, key) DO NOTHING`,
		collection, key, raw,
	)
	if err != nil {
		return false, fmt.Errorf("create %s/%s: %w", collection, key, err)
	}
	return cmd.RowsAffected() == 1, nil
}

func pgIncrement(ctx context.Context, q rowQuerier, collection, key, field string, delta float64) (float64, error) {
	var next float64
	err := q.QueryRow(ctx,
		`INSERT INTO documents (collection, key, doc)
		 VALUES ($1, $2, jsonb_build_object($3::text, $4::numeric))
		 ON CONFLICT (collection, key)
		 DO UPDATE SET
		   doc = jsonb_set(
		     documents.doc,
		     ARRAY[$3::text],
		     to_jsonb(COALESCE((documents.doc ->> $3)::numeric, 0) + $4::numeric),
		     true
		   ),
		   updated_at = now()
		 RETURNING (doc ->> $3)::float8`,
		collection, key, field, delta,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("increment %s/%s.%s: %w", collection, key, field, err)
	}
	return next, nil
}
