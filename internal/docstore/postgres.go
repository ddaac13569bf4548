package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresSchema creates the table every collection of a PostgresStore lives in.
const PostgresSchema = `
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		body JSONB NOT NULL DEFAULT '{}'::jsonb,
		seq BIGSERIAL,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_collection_seq ON documents(collection, seq);
	CREATE INDEX IF NOT EXISTS idx_documents_body ON documents USING GIN (body);
`

const uniqueViolation = "23505"

// PgxIface is the subset of *pgxpool.Pool used by PostgresStore.
type PgxIface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore keeps every collection in the documents table, one JSONB row per
// document. The identifier lives in its own column and is not repeated in the body.
type PostgresStore struct {
	db    PgxIface
	opts  Options
	seeds seedGuard
}

// NewPostgresStore expects PostgresSchema to be applied already.
func NewPostgresStore(db PgxIface, opts Options) *PostgresStore {
	return &PostgresStore{db: db, opts: opts}
}

// EnsureIndexes creates a partial unique index for every field declared in Options.
func (s *PostgresStore) EnsureIndexes(ctx context.Context) error {
	for name, fields := range s.opts.Unique {
		for _, field := range fields {
			index := pgx.Identifier{fmt.Sprintf("uniq_documents_%s_%s", name, field)}.Sanitize()
			sql := fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON documents ((body->>%s)) WHERE collection = %s`,
				index, quoteLiteral(field), quoteLiteral(name))
			if _, err := s.db.Exec(ctx, sql); err != nil {
				return fmt.Errorf("failed to create unique index %s.%s: %w", name, field, err)
			}
		}
	}
	return nil
}

func (s *PostgresStore) Collection(name string) Collection {
	return &postgresCollection{store: s, name: name}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *PostgresStore) Close(ctx context.Context) error {
	s.db.Close()
	return nil
}

type postgresCollection struct {
	store *PostgresStore
	name  string
}

func (c *postgresCollection) ensureSeed(ctx context.Context) error {
	return c.store.seeds.ensure(ctx, c.name, func(ctx context.Context) error {
		seed, err := c.store.opts.seedFor(c.name)
		if err != nil || len(seed) == 0 {
			return err
		}
		var n int64
		err = c.store.db.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE collection = $1`, c.name).Scan(&n)
		if err != nil {
			return fmt.Errorf("failed to count %s: %w", c.name, err)
		}
		if n > 0 {
			return nil
		}
		for _, doc := range seed {
			id, body, err := splitDocument(doc)
			if err != nil {
				return err
			}
			_, err = c.store.db.Exec(ctx,
				`INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
				c.name, id, body)
			if err != nil {
				return fmt.Errorf("failed to seed %s: %w", c.name, err)
			}
		}
		return nil
	})
}

func (c *postgresCollection) Find(ctx context.Context) ([]Document, error) {
	if err := c.ensureSeed(ctx); err != nil {
		return nil, err
	}
	rows, err := c.store.db.Query(ctx, `SELECT id, body FROM documents WHERE collection = $1 ORDER BY seq`, c.name)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.name, err)
	}
	defer rows.Close()

	docs := []Document{}
	for rows.Next() {
		var id string
		var body []byte
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("failed to scan %s: %w", c.name, err)
		}
		doc, err := joinDocument(id, body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", c.name, err)
	}
	return docs, nil
}

func (c *postgresCollection) FindOne(ctx context.Context, field string, value any) (Document, error) {
	if err := c.ensureSeed(ctx); err != nil {
		return nil, err
	}
	var (
		row pgx.Row
		err error
	)
	if field == IDField {
		id, ok := value.(string)
		if !ok {
			return nil, nil
		}
		row = c.store.db.QueryRow(ctx,
			`SELECT id, body FROM documents WHERE collection = $1 AND id = $2`, c.name, id)
	} else {
		var v []byte
		if v, err = fieldValue(field, value); err != nil {
			return nil, err
		}
		row = c.store.db.QueryRow(ctx,
			`SELECT id, body FROM documents WHERE collection = $1 AND body -> $2::text = $3::jsonb ORDER BY seq LIMIT 1`,
			c.name, field, v)
	}
	return c.scanOne(row)
}

func (c *postgresCollection) InsertOne(ctx context.Context, doc Document) (Document, error) {
	if err := c.ensureSeed(ctx); err != nil {
		return nil, err
	}
	n, err := normalizeDocument(doc)
	if err != nil {
		return nil, err
	}
	if raw, ok := n[IDField]; ok && raw != nil && raw != "" {
		if _, ok := raw.(string); !ok {
			return nil, fmt.Errorf("%s must be a string, got %T", IDField, raw)
		}
	} else {
		id, err := newID(nil)
		if err != nil {
			return nil, err
		}
		n[IDField] = id
	}
	id, body, err := splitDocument(n)
	if err != nil {
		return nil, err
	}
	_, err = c.store.db.Exec(ctx,
		`INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3)`, c.name, id, body)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("insert into %s: %w", c.name, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to insert into %s: %w", c.name, err)
	}
	return n, nil
}

func (c *postgresCollection) UpdateOne(ctx context.Context, field string, value any, patch Document) (Document, error) {
	if err := c.ensureSeed(ctx); err != nil {
		return nil, err
	}
	p, err := normalizeDocument(patch)
	if err != nil {
		return nil, err
	}
	delete(p, IDField)
	if len(p) == 0 {
		return c.FindOne(ctx, field, value)
	}
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode patch: %w", err)
	}

	var row pgx.Row
	if field == IDField {
		id, ok := value.(string)
		if !ok {
			return nil, nil
		}
		row = c.store.db.QueryRow(ctx,
			`UPDATE documents SET body = body || $3::jsonb WHERE collection = $1 AND id = $2 RETURNING id, body`,
			c.name, id, body)
	} else {
		v, err := fieldValue(field, value)
		if err != nil {
			return nil, err
		}
		row = c.store.db.QueryRow(ctx,
			`UPDATE documents SET body = body || $4::jsonb WHERE collection = $1 AND id = (
				SELECT id FROM documents WHERE collection = $1 AND body -> $2::text = $3::jsonb ORDER BY seq LIMIT 1 FOR UPDATE
			) RETURNING id, body`,
			c.name, field, v, body)
	}
	return c.scanOne(row)
}

func (c *postgresCollection) scanOne(row pgx.Row) (Document, error) {
	var id string
	var body []byte
	if err := row.Scan(&id, &body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("update in %s: %w", c.name, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to read %s: %w", c.name, err)
	}
	return joinDocument(id, body)
}

// splitDocument separates the identifier from the JSON body stored for doc.
func splitDocument(doc Document) (string, []byte, error) {
	body := make(Document, len(doc))
	for k, v := range doc {
		if k != IDField {
			body[k] = v
		}
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode document: %w", err)
	}
	return doc.ID(), b, nil
}

func joinDocument(id string, body []byte) (Document, error) {
	doc := Document{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &doc); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
		}
	}
	doc[IDField] = id
	return doc, nil
}

// fieldValue encodes value for an exact jsonb equality lookup on field.
func fieldValue(field string, value any) ([]byte, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("invalid value for %s: %w", field, err)
	}
	return b, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
