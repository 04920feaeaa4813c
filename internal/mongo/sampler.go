package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

var errEmptySample = errors.New("strategy returned no documents")

// sampleStrategy is one way of obtaining documents. Strategies are tried in
// order until one returns a non-empty sample.
type sampleStrategy struct {
	source SampleSource
	run    func(ctx context.Context, dbName, collName string, opts SampleOptions) ([]bson.D, error)
	// final stops the chain even when the strategy produced nothing.
	final bool
}

func (i *Inspector) strategies(opts SampleOptions) []sampleStrategy {
	if opts.Filter != nil {
		// A filter means the caller wants specific documents; random
		// strategies would return unrelated ones.
		return []sampleStrategy{{source: SourceFiltered, run: i.sampleFiltered, final: true}}
	}
	return []sampleStrategy{
		{source: SourceServerSample, run: i.sampleServer},
		{source: SourceScan, run: i.sampleScan},
	}
}

// Sample returns at most opts.Size documents and the strategy that produced
// them. It never fails: when every strategy fails the sample is empty and
// the source is SourceNone.
func (i *Inspector) Sample(ctx context.Context, dbName, collName string, opts SampleOptions) ([]bson.D, SampleSource) {
	ns := dbName + "." + collName
	for _, s := range i.strategies(opts) {
		docs, err := s.run(ctx, dbName, collName, opts)
		if err == nil && len(docs) == 0 {
			err = errEmptySample
		}
		if err == nil {
			return docs, s.source
		}
		i.logger.Debug("sampling strategy failed",
			slog.String("namespace", ns),
			slog.String("strategy", string(s.source)),
			slog.Any("error", err),
		)
		if s.final {
			break
		}
	}
	return nil, SourceNone
}

// sampleFiltered returns matching documents in natural order.
func (i *Inspector) sampleFiltered(ctx context.Context, dbName, collName string, opts SampleOptions) ([]bson.D, error) {
	limit := opts.limit()
	if limit == 0 {
		return nil, nil
	}
	ctx, cancel := i.withTimeout(ctx)
	defer cancel()
	cursor, err := i.db.Find(ctx, dbName, collName, opts.Filter, limit)
	if err != nil {
		return nil, fmt.Errorf("find: %w", err)
	}
	return readAll(ctx, cursor)
}

// sampleServer uses the $sample aggregation stage.
func (i *Inspector) sampleServer(ctx context.Context, dbName, collName string, opts SampleOptions) ([]bson.D, error) {
	size := opts.limit()
	if size == 0 {
		return nil, nil
	}
	ctx, cancel := i.withTimeout(ctx)
	defer cancel()
	pipeline := mongo.Pipeline{
		bson.D{{Key: "$sample", Value: bson.D{{Key: "size", Value: size}}}},
	}
	cursor, err := i.db.Aggregate(ctx, dbName, collName, pipeline)
	if err != nil {
		return nil, fmt.Errorf("$sample: %w", err)
	}
	return readAll(ctx, cursor)
}

// sampleScan reads up to MaxScan documents and keeps a uniform random subset
// of Size of them.
func (i *Inspector) sampleScan(ctx context.Context, dbName, collName string, opts SampleOptions) ([]bson.D, error) {
	if opts.MaxScan <= 0 {
		return nil, nil
	}
	ctx, cancel := i.withTimeout(ctx)
	defer cancel()
	cursor, err := i.db.Find(ctx, dbName, collName, bson.D{}, opts.MaxScan)
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	pool, err := readAll(ctx, cursor)
	if err != nil {
		return nil, err
	}
	return Subsample(pool, int(max(0, opts.Size)), opts.Rand), nil
}

// Subsample draws k distinct elements uniformly without replacement, in draw
// order. A pool of at most k elements is returned whole. The same generator
// state always yields the same selection.
func Subsample[T any](pool []T, k int, rng *rand.Rand) []T {
	if len(pool) <= k {
		return pool
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(0, 0))
	}
	idx := make([]int, len(pool))
	for n := range idx {
		idx[n] = n
	}
	out := make([]T, 0, k)
	for n := range k {
		j := n + rng.IntN(len(idx)-n)
		idx[n], idx[j] = idx[j], idx[n]
		out = append(out, pool[idx[n]])
	}
	return out
}

func readAll(ctx context.Context, cursor *mongo.Cursor) ([]bson.D, error) {
	var docs []bson.D
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("read cursor: %w", err)
	}
	return docs, nil
}
