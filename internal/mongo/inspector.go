package mongo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"
)

var systemDBs = map[string]bool{
	"admin":  true,
	"local":  true,
	"config": true,
}

// ErrNoTargets is returned when no database could be listed and the URI
// names no default database.
var ErrNoTargets = errors.New("no databases available")

// dbClient abstracts the MongoDB client operations for testability.
type dbClient interface {
	Ping(ctx context.Context) error
	Disconnect(ctx context.Context) error
	ListDatabaseNames(ctx context.Context) ([]string, error)
	ListCollectionNames(ctx context.Context, dbName string) ([]string, error)
	RunCommand(ctx context.Context, dbName string, cmd any) *mongo.SingleResult
	Aggregate(ctx context.Context, dbName, collName string, pipeline any) (*mongo.Cursor, error)
	Find(ctx context.Context, dbName, collName string, filter any, limit int64) (*mongo.Cursor, error)
	EstimatedDocumentCount(ctx context.Context, dbName, collName string) (int64, error)
}

// mongoDBClient wraps the real mongo.Client to implement dbClient.
type mongoDBClient struct {
	client *mongo.Client
}

func (m *mongoDBClient) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *mongoDBClient) Disconnect(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

func (m *mongoDBClient) ListDatabaseNames(ctx context.Context) ([]string, error) {
	return m.client.ListDatabaseNames(ctx, bson.D{})
}

func (m *mongoDBClient) ListCollectionNames(ctx context.Context, dbName string) ([]string, error) {
	return m.client.Database(dbName).ListCollectionNames(ctx, bson.D{})
}

func (m *mongoDBClient) RunCommand(ctx context.Context, dbName string, cmd any) *mongo.SingleResult {
	return m.client.Database(dbName).RunCommand(ctx, cmd)
}

func (m *mongoDBClient) Aggregate(ctx context.Context, dbName, collName string, pipeline any) (*mongo.Cursor, error) {
	return m.client.Database(dbName).Collection(collName).Aggregate(ctx, pipeline, options.Aggregate().SetAllowDiskUse(false))
}

func (m *mongoDBClient) Find(ctx context.Context, dbName, collName string, filter any, limit int64) (*mongo.Cursor, error) {
	return m.client.Database(dbName).Collection(collName).Find(ctx, filter, options.Find().SetLimit(limit))
}

func (m *mongoDBClient) EstimatedDocumentCount(ctx context.Context, dbName, collName string) (int64, error) {
	return m.client.Database(dbName).Collection(collName).EstimatedDocumentCount(ctx)
}

// Inspector reads MongoDB metadata, statistics and document samples.
type Inspector struct {
	db      dbClient
	uri     string
	timeout time.Duration
	logger  *slog.Logger
}

// NewInspector connects to MongoDB and verifies the connection.
// cfg.Timeout, or else the context deadline, bounds connection and server
// selection time.
func NewInspector(ctx context.Context, cfg Config) (*Inspector, error) {
	opts := options.Client().ApplyURI(cfg.URI)

	// Unreachable hosts must not hang for the OS-level TCP timeout.
	d := cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok && d == 0 {
		d = time.Until(deadline)
	}
	if d > 0 {
		opts.SetConnectTimeout(d)
		opts.SetServerSelectionTimeout(d)
	}

	client, err := mongo.Connect(opts)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	dbc := &mongoDBClient{client: client}
	if err := dbc.Ping(ctx); err != nil {
		_ = dbc.Disconnect(ctx)
		return nil, fmt.Errorf("ping: %w", err)
	}

	return newInspector(dbc, cfg), nil
}

func newInspector(db dbClient, cfg Config) *Inspector {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Inspector{db: db, uri: cfg.URI, timeout: cfg.Timeout, logger: logger}
}

// Close disconnects from MongoDB.
func (i *Inspector) Close(ctx context.Context) error {
	return i.db.Disconnect(ctx)
}

// withTimeout bounds a single server command by the configured timeout.
func (i *Inspector) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if i.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, i.timeout)
}

// ListTargets resolves the collections to analyze. System databases and
// system.* collections are always skipped. Empty include lists select
// everything. When nothing matched, the URI's default database is used.
func (i *Inspector) ListTargets(ctx context.Context, includeDBs, includeColls []string) ([]Target, error) {
	dbNames, listErr := i.listDatabaseNames(ctx)
	if listErr != nil {
		i.logger.Debug("list databases failed", slog.Any("error", listErr))
	}

	var targets []Target
	for _, dbName := range dbNames {
		if systemDBs[dbName] {
			continue
		}
		if len(includeDBs) > 0 && !slices.Contains(includeDBs, dbName) {
			continue
		}
		for _, coll := range i.collectionNames(ctx, dbName) {
			if len(includeColls) > 0 && !slices.Contains(includeColls, coll) {
				continue
			}
			targets = append(targets, Target{Database: dbName, Collection: coll})
		}
	}
	if len(targets) > 0 {
		return targets, nil
	}

	dbName := i.DefaultDatabase()
	if dbName == "" {
		if listErr != nil {
			return nil, fmt.Errorf("%w: %w", ErrNoTargets, listErr)
		}
		return nil, nil
	}
	i.logger.Debug("falling back to default database", slog.String("db", dbName))
	for _, coll := range i.collectionNames(ctx, dbName) {
		targets = append(targets, Target{Database: dbName, Collection: coll})
	}
	return targets, nil
}

func (i *Inspector) listDatabaseNames(ctx context.Context) ([]string, error) {
	ctx, cancel := i.withTimeout(ctx)
	defer cancel()
	names, err := i.db.ListDatabaseNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	return names, nil
}

// collectionNames lists non-system collections in name order; failures yield none.
func (i *Inspector) collectionNames(ctx context.Context, dbName string) []string {
	ctx, cancel := i.withTimeout(ctx)
	defer cancel()
	names, err := i.db.ListCollectionNames(ctx, dbName)
	if err != nil {
		i.logger.Debug("list collections failed", slog.String("db", dbName), slog.Any("error", err))
		return nil
	}
	out := make([]string, 0, len(names))
	for _, n := range names {
		if strings.HasPrefix(n, "system.") {
			continue
		}
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// DefaultDatabase returns the database named in the connection URI, if any.
func (i *Inspector) DefaultDatabase() string {
	return DefaultDatabase(i.uri)
}

// DefaultDatabase extracts the database path segment of a MongoDB URI.
func DefaultDatabase(uri string) string {
	if uri == "" {
		return ""
	}
	cs, err := connstring.Parse(uri)
	if err != nil {
		return ""
	}
	return cs.Database
}

// CollectionStats runs collStats for a collection.
func (i *Inspector) CollectionStats(ctx context.Context, dbName, collName string) (CollStats, error) {
	ctx, cancel := i.withTimeout(ctx)
	defer cancel()

	result := i.db.RunCommand(ctx, dbName, bson.D{{Key: "collStats", Value: collName}})
	var raw bson.M
	if err := result.Decode(&raw); err != nil {
		return CollStats{}, fmt.Errorf("collStats %s.%s: %w", dbName, collName, err)
	}

	cs := CollStats{
		Count:          toInt64(raw["count"]),
		Size:           toInt64(raw["size"]),
		AvgObjSize:     toInt64(raw["avgObjSize"]),
		StorageSize:    toInt64(raw["storageSize"]),
		TotalIndexSize: toInt64(raw["totalIndexSize"]),
		IndexSizes:     map[string]int64{},
	}
	for name, v := range toBsonM(raw["indexSizes"]) {
		cs.IndexSizes[name] = toInt64(v)
	}
	return cs, nil
}

// EstimatedDocumentCount returns the metadata-based document count.
func (i *Inspector) EstimatedDocumentCount(ctx context.Context, dbName, collName string) (int64, error) {
	ctx, cancel := i.withTimeout(ctx)
	defer cancel()
	n, err := i.db.EstimatedDocumentCount(ctx, dbName, collName)
	if err != nil {
		return 0, fmt.Errorf("count %s.%s: %w", dbName, collName, err)
	}
	return n, nil
}

// ServerInfo gathers buildInfo, hello (isMaster on old servers) and
// serverStatus opcounters. Each command is best-effort; failures are
// recorded in Errors and leave the matching fields zero.
func (i *Inspector) ServerInfo(ctx context.Context) ServerInfo {
	var info ServerInfo

	if raw, err := i.adminCommand(ctx, "buildInfo"); err != nil {
		info.Errors = append(info.Errors, fmt.Sprintf("buildInfo: %v", err))
	} else {
		info.Version, _ = raw["version"].(string)
		info.GitVersion, _ = raw["gitVersion"].(string)
	}

	if raw, err := i.adminCommand(ctx, "hello"); err == nil {
		info.Hello = raw
	} else if raw, legacyErr := i.adminCommand(ctx, "isMaster"); legacyErr == nil {
		info.Hello = raw
	} else {
		info.Errors = append(info.Errors, fmt.Sprintf("hello: %v", err))
	}

	if raw, err := i.adminCommand(ctx, "serverStatus"); err != nil {
		info.Errors = append(info.Errors, fmt.Sprintf("serverStatus: %v", err))
	} else {
		info.Uptime = toInt64(raw["uptime"])
		if oc := toBsonM(raw["opcounters"]); oc != nil {
			info.Opcounters = &Opcounters{
				Insert:  toInt64(oc["insert"]),
				Query:   toInt64(oc["query"]),
				Update:  toInt64(oc["update"]),
				Delete:  toInt64(oc["delete"]),
				Getmore: toInt64(oc["getmore"]),
				Command: toInt64(oc["command"]),
			}
		}
	}

	for _, e := range info.Errors {
		i.logger.Debug("server info incomplete", slog.String("error", e))
	}
	return info
}

func (i *Inspector) adminCommand(ctx context.Context, name string) (bson.M, error) {
	ctx, cancel := i.withTimeout(ctx)
	defer cancel()
	var raw bson.M
	if err := i.db.RunCommand(ctx, "admin", bson.D{{Key: name, Value: 1}}).Decode(&raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// toInt64 converts a BSON numeric value to int64.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		return 0
	}
}

// toBsonM converts a value to bson.M, handling both bson.M and bson.D inputs.
func toBsonM(v any) bson.M {
	switch m := v.(type) {
	case bson.M:
		return m
	case bson.D:
		result := make(bson.M, len(m))
		for _, e := range m {
			result[e.Key] = e.Value
		}
		return result
	default:
		return nil
	}
}
