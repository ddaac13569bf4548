package docstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// MongoStore maps collections onto a MongoDB database. The document identifier is
// stored as _id: ObjectIDs generated here, strings when supplied by the caller. Callers
// always see the identifier as a string.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	opts   Options
	seeds  seedGuard
}

// NewMongoStore uses the given connected client. Writes are acknowledged by a
// majority of the replica set and journaled before returning.
func NewMongoStore(client *mongo.Client, database string, opts Options) *MongoStore {
	journal := true
	wc := writeconcern.Majority()
	wc.Journal = &journal
	return &MongoStore{
		client: client,
		db:     client.Database(database, options.Database().SetWriteConcern(wc)),
		opts:   opts,
	}
}

// EnsureIndexes creates the unique indexes declared in Options.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	for name, fields := range s.opts.Unique {
		for _, field := range fields {
			_, err := s.db.Collection(name).Indexes().CreateOne(ctx, mongo.IndexModel{
				Keys:    bson.D{{Key: field, Value: 1}},
				Options: options.Index().SetUnique(true),
			})
			if err != nil {
				return fmt.Errorf("failed to create unique index %s.%s: %w", name, field, err)
			}
		}
	}
	return nil
}

func (s *MongoStore) Collection(name string) Collection {
	return &mongoCollection{store: s, name: name, coll: s.db.Collection(name)}
}

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

type mongoCollection struct {
	store *MongoStore
	name  string
	coll  *mongo.Collection
}

func (c *mongoCollection) ensureSeed(ctx context.Context) error {
	return c.store.seeds.ensure(ctx, c.name, func(ctx context.Context) error {
		seed, err := c.store.opts.seedFor(c.name)
		if err != nil || len(seed) == 0 {
			return err
		}
		n, err := c.coll.CountDocuments(ctx, bson.D{})
		if err != nil {
			return fmt.Errorf("failed to count %s: %w", c.name, err)
		}
		if n > 0 {
			return nil
		}
		docs := make([]interface{}, 0, len(seed))
		for _, d := range seed {
			docs = append(docs, toBSON(d))
		}
		if _, err := c.coll.InsertMany(ctx, docs); err != nil && !mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("failed to seed %s: %w", c.name, err)
		}
		return nil
	})
}

func (c *mongoCollection) Find(ctx context.Context) ([]Document, error) {
	if err := c.ensureSeed(ctx); err != nil {
		return nil, err
	}
	cur, err := c.coll.Find(ctx, bson.D{})
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", c.name, err)
	}
	var raw []bson.M
	if err := cur.All(ctx, &raw); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", c.name, err)
	}
	docs := make([]Document, 0, len(raw))
	for _, r := range raw {
		d, err := fromBSON(r)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, nil
}

func (c *mongoCollection) FindOne(ctx context.Context, field string, value any) (Document, error) {
	if err := c.ensureSeed(ctx); err != nil {
		return nil, err
	}
	filter, err := mongoFilter(field, value)
	if err != nil {
		return nil, err
	}
	var raw bson.M
	if err := c.coll.FindOne(ctx, filter).Decode(&raw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find in %s: %w", c.name, err)
	}
	return fromBSON(raw)
}

func (c *mongoCollection) InsertOne(ctx context.Context, doc Document) (Document, error) {
	if err := c.ensureSeed(ctx); err != nil {
		return nil, err
	}
	n, err := normalizeDocument(doc)
	if err != nil {
		return nil, err
	}
	var oid *primitive.ObjectID
	if raw, ok := n[IDField]; ok && raw != nil && raw != "" {
		if _, ok := raw.(string); !ok {
			return nil, fmt.Errorf("%s must be a string, got %T", IDField, raw)
		}
	} else {
		generated := primitive.NewObjectID()
		oid = &generated
		n[IDField] = generated.Hex()
	}
	m := toBSON(n)
	if oid != nil {
		m["_id"] = *oid
	}
	if _, err := c.coll.InsertOne(ctx, m); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("insert into %s: %w", c.name, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to insert into %s: %w", c.name, err)
	}
	return n, nil
}

func (c *mongoCollection) UpdateOne(ctx context.Context, field string, value any, patch Document) (Document, error) {
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
	filter, err := mongoFilter(field, value)
	if err != nil {
		return nil, err
	}

	var raw bson.M
	err = c.coll.FindOneAndUpdate(ctx, filter, bson.M{"$set": bson.M(p)},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("update in %s: %w", c.name, ErrDuplicate)
		}
		return nil, fmt.Errorf("failed to update %s: %w", c.name, err)
	}
	return fromBSON(raw)
}

// mongoFilter builds an equality filter. An identifier matches both its string form
// and, when it is valid hex, the ObjectID it encodes.
func mongoFilter(field string, value any) (bson.M, error) {
	v, err := normalizeValue(value)
	if err != nil {
		return nil, fmt.Errorf("invalid value for %s: %w", field, err)
	}
	if field != IDField {
		return bson.M{field: v}, nil
	}
	ids := bson.A{v}
	if s, ok := v.(string); ok {
		if oid, err := primitive.ObjectIDFromHex(s); err == nil {
			ids = append(ids, oid)
		}
	}
	return bson.M{"_id": bson.M{"$in": ids}}, nil
}

func toBSON(doc Document) bson.M {
	m := make(bson.M, len(doc))
	for k, v := range doc {
		if k == IDField {
			m["_id"] = v
			continue
		}
		m[k] = v
	}
	return m
}

func fromBSON(raw bson.M) (Document, error) {
	doc := make(Document, len(raw))
	for k, v := range raw {
		if k == "_id" {
			doc[IDField] = fromBSONValue(v)
			continue
		}
		doc[k] = fromBSONValue(v)
	}
	return normalizeDocument(doc)
}

func fromBSONValue(v any) any {
	switch x := v.(type) {
	case primitive.ObjectID:
		return x.Hex()
	case primitive.DateTime:
		return x.Time().UTC().Format(time.RFC3339Nano)
	case primitive.D:
		m := make(map[string]any, len(x))
		for _, e := range x {
			m[e.Key] = fromBSONValue(e.Value)
		}
		return m
	case primitive.M:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = fromBSONValue(e)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(x))
		for k, e := range x {
			m[k] = fromBSONValue(e)
		}
		return m
	case primitive.A:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = fromBSONValue(e)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = fromBSONValue(e)
		}
		return out
	default:
		return v
	}
}
