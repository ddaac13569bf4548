package docstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type storeFactory func(t *testing.T, opts Options) Store

func TestMemoryStore_Conformance(t *testing.T) {
	runConformance(t, func(t *testing.T, opts Options) Store {
		return NewMemoryStore(opts)
	})
}

func TestFileStore_Conformance(t *testing.T) {
	runConformance(t, func(t *testing.T, opts Options) Store {
		return NewFileStore(filepath.Join(t.TempDir(), "db.json"), opts)
	})
}

func TestMongoStore_Conformance(t *testing.T) {
	uri := os.Getenv("TEST_MONGO_URI")
	if uri == "" {
		t.Skip("TEST_MONGO_URI not set")
	}
	runConformance(t, func(t *testing.T, opts Options) Store {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
		require.NoError(t, err)

		dbName := "petvet_test_" + uuid.NewString()[:8]
		store := NewMongoStore(client, dbName, opts)
		require.NoError(t, store.EnsureIndexes(ctx))
		t.Cleanup(func() {
			ctx := context.Background()
			_ = client.Database(dbName).Drop(ctx)
			_ = client.Disconnect(ctx)
		})
		return store
	})
}

func TestPostgresStore_Conformance(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	runConformance(t, func(t *testing.T, opts Options) Store {
		ctx := context.Background()
		pool, err := pgxpool.New(ctx, dsn)
		require.NoError(t, err)
		_, err = pool.Exec(ctx, PostgresSchema)
		require.NoError(t, err)

		store := NewPostgresStore(pool, opts)
		require.NoError(t, store.EnsureIndexes(ctx))
		t.Cleanup(func() {
			for name := range opts.Seed {
				_, _ = pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1`, name)
			}
			for name := range opts.Unique {
				_, _ = pool.Exec(ctx, `DELETE FROM documents WHERE collection = $1`, name)
			}
			pool.Close()
		})
		return store
	})
}

// conformanceNames returns collection names that do not collide across runs sharing a database.
func conformanceNames() (catalog, people string) {
	suffix := uuid.NewString()[:8]
	return "catalog_" + suffix, "people_" + suffix
}

func conformanceOptions(catalog, people string) Options {
	return Options{
		Seed: map[string][]Document{
			catalog: {
				{"id": "s1", "name": "Checkup", "price": 80},
				{"id": "s2", "name": "Vaccination", "price": 50.5},
			},
			// people is declared only to be cleaned up by database-backed factories
			people: {},
		},
		Unique: map[string][]string{people: {"email"}},
	}
}

func runConformance(t *testing.T, newStore storeFactory) {
	ctx := context.Background()

	t.Run("seeds on first access", func(t *testing.T) {
		catalog, people := conformanceNames()
		store := newStore(t, conformanceOptions(catalog, people))

		docs, err := store.Collection(catalog).Find(ctx)
		require.NoError(t, err)
		require.Len(t, docs, 2)
		assert.Equal(t, "s1", docs[0].ID())
		assert.Equal(t, "s2", docs[1].ID())
		assert.Equal(t, float64(80), docs[0]["price"])
		assert.Equal(t, 50.5, docs[1]["price"])
	})

	t.Run("find on empty collection", func(t *testing.T) {
		catalog, people := conformanceNames()
		store := newStore(t, conformanceOptions(catalog, people))

		docs, err := store.Collection(people).Find(ctx)
		require.NoError(t, err)
		assert.NotNil(t, docs)
		assert.Empty(t, docs)
	})

	t.Run("insert assigns identifier", func(t *testing.T) {
		catalog, people := conformanceNames()
		store := newStore(t, conformanceOptions(catalog, people))
		coll := store.Collection(people)

		inserted, err := coll.InsertOne(ctx, Document{"name": "Ana", "email": "ana@example.com"})
		require.NoError(t, err)
		require.NotEmpty(t, inserted.ID())
		assert.Equal(t, "Ana", inserted["name"])

		found, err := coll.FindOne(ctx, IDField, inserted.ID())
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, inserted.ID(), found.ID())
		assert.Equal(t, "ana@example.com", found["email"])

		byEmail, err := coll.FindOne(ctx, "email", "ana@example.com")
		require.NoError(t, err)
		require.NotNil(t, byEmail)
		assert.Equal(t, inserted.ID(), byEmail.ID())
	})

	t.Run("find one absent", func(t *testing.T) {
		catalog, people := conformanceNames()
		store := newStore(t, conformanceOptions(catalog, people))

		doc, err := store.Collection(catalog).FindOne(ctx, IDField, "missing")
		assert.NoError(t, err)
		assert.Nil(t, doc)

		doc, err = store.Collection(people).FindOne(ctx, "email", "nobody@example.com")
		assert.NoError(t, err)
		assert.Nil(t, doc)
	})

	t.Run("unique field", func(t *testing.T) {
		catalog, people := conformanceNames()
		store := newStore(t, conformanceOptions(catalog, people))
		coll := store.Collection(people)

		_, err := coll.InsertOne(ctx, Document{"email": "dup@example.com"})
		require.NoError(t, err)
		_, err = coll.InsertOne(ctx, Document{"email": "dup@example.com"})
		assert.ErrorIs(t, err, ErrDuplicate)

		docs, err := coll.Find(ctx)
		require.NoError(t, err)
		assert.Len(t, docs, 1)
	})

	t.Run("update merges shallowly", func(t *testing.T) {
		catalog, people := conformanceNames()
		store := newStore(t, conformanceOptions(catalog, people))
		coll := store.Collection(catalog)

		updated, err := coll.UpdateOne(ctx, IDField, "s1", Document{"price": 95, "active": false, "id": "other"})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, "s1", updated.ID())
		assert.Equal(t, "Checkup", updated["name"])
		assert.Equal(t, float64(95), updated["price"])
		assert.Equal(t, false, updated["active"])

		found, err := coll.FindOne(ctx, IDField, "s1")
		require.NoError(t, err)
		assert.Equal(t, updated, found)
	})

	t.Run("update by field", func(t *testing.T) {
		catalog, people := conformanceNames()
		store := newStore(t, conformanceOptions(catalog, people))
		coll := store.Collection(catalog)

		updated, err := coll.UpdateOne(ctx, "name", "Vaccination", Document{"name": "Vaccines"})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, "s2", updated.ID())
		assert.Equal(t, "Vaccines", updated["name"])
	})

	t.Run("update absent", func(t *testing.T) {
		catalog, people := conformanceNames()
		store := newStore(t, conformanceOptions(catalog, people))

		updated, err := store.Collection(catalog).UpdateOne(ctx, IDField, "missing", Document{"name": "x"})
		assert.NoError(t, err)
		assert.Nil(t, updated)
	})

	t.Run("concurrent updates are not lost", func(t *testing.T) {
		catalog, people := conformanceNames()
		store := newStore(t, conformanceOptions(catalog, people))
		coll := store.Collection(catalog)

		const n = 20
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := coll.UpdateOne(ctx, IDField, "s1", Document{fmt.Sprintf("f%d", i): i})
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}

		doc, err := coll.FindOne(ctx, IDField, "s1")
		require.NoError(t, err)
		require.NotNil(t, doc)
		assert.Len(t, doc, n+3)
		assert.Equal(t, "Checkup", doc["name"])
		assert.Equal(t, float64(80), doc["price"])
		for i := 0; i < n; i++ {
			assert.Equal(t, float64(i), doc[fmt.Sprintf("f%d", i)])
		}
	})

	t.Run("non-string identifier is rejected", func(t *testing.T) {
		catalog, people := conformanceNames()
		store := newStore(t, conformanceOptions(catalog, people))
		coll := store.Collection(people)

		_, err := coll.InsertOne(ctx, Document{"id": 5, "email": "five@example.com"})
		assert.Error(t, err)

		docs, err := coll.Find(ctx)
		require.NoError(t, err)
		assert.Empty(t, docs)
	})

	t.Run("lookups match whole values", func(t *testing.T) {
		catalog, people := conformanceNames()
		store := newStore(t, conformanceOptions(catalog, people))
		coll := store.Collection(people)

		_, err := coll.InsertOne(ctx, Document{"email": "a@example.com", "tags": []any{1, 2}, "meta": Document{"a": 1, "b": 2}})
		require.NoError(t, err)

		found, err := coll.FindOne(ctx, "tags", []any{1})
		require.NoError(t, err)
		assert.Nil(t, found)

		found, err = coll.FindOne(ctx, "meta", Document{"a": 1})
		require.NoError(t, err)
		assert.Nil(t, found)

		updated, err := coll.UpdateOne(ctx, "tags", []any{1}, Document{"hit": true})
		require.NoError(t, err)
		assert.Nil(t, updated)

		found, err = coll.FindOne(ctx, "tags", []any{1, 2})
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "a@example.com", found["email"])
	})

	t.Run("concurrent inserts", func(t *testing.T) {
		catalog, people := conformanceNames()
		store := newStore(t, conformanceOptions(catalog, people))
		coll := store.Collection(people)

		const n = 20
		var wg sync.WaitGroup
		errs := make(chan error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := coll.InsertOne(ctx, Document{"email": fmt.Sprintf("user%d@example.com", i)})
				errs <- err
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			assert.NoError(t, err)
		}

		docs, err := coll.Find(ctx)
		require.NoError(t, err)
		assert.Len(t, docs, n)
		ids := make(map[string]bool, n)
		for _, d := range docs {
			ids[d.ID()] = true
		}
		assert.Len(t, ids, n)
	})
}
