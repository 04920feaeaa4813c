//go:build integration

package mongo

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

func setupMongoDB(t *testing.T) (string, func()) {
	t.Helper()
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:7")
	if err != nil {
		t.Fatalf("start container: %v", err)
	}

	uri, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	db := client.Database("testdb")
	orders := make([]any, 0, 300)
	for i := range 300 {
		orders = append(orders, bson.D{
			{Key: "orderNo", Value: fmt.Sprintf("ord-%04d", i)},
			{Key: "status", Value: []string{"new", "paid", "shipped"}[i%3]},
			{Key: "items", Value: bson.A{i, i + 1}},
			{Key: "customer", Value: bson.D{{Key: "id", Value: i % 50}}},
		})
	}
	if _, err := db.Collection("orders").InsertMany(ctx, orders); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if _, err := db.Collection("orders").Indexes().CreateOne(ctx, mongo.IndexModel{Keys: bson.D{{Key: "orderNo", Value: 1}}}); err != nil {
		t.Fatalf("create index: %v", err)
	}
	if err := db.CreateCollection(ctx, "empty_collection"); err != nil {
		t.Fatalf("create collection: %v", err)
	}

	if err := client.Disconnect(ctx); err != nil {
		t.Fatalf("disconnect seed client: %v", err)
	}

	cleanup := func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}
	return uri, cleanup
}

func TestIntegration_Inspector(t *testing.T) {
	uri, cleanup := setupMongoDB(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	insp, err := NewInspector(ctx, Config{URI: uri, Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("NewInspector: %v", err)
	}
	defer func() { _ = insp.Close(ctx) }()

	info := insp.ServerInfo(ctx)
	if info.Version == "" {
		t.Error("server version is empty")
	}
	if info.Opcounters == nil {
		t.Error("serverStatus opcounters missing")
	}
	t.Logf("MongoDB version: %s", info.Version)

	targets, err := insp.ListTargets(ctx, []string{"testdb"}, nil)
	if err != nil {
		t.Fatalf("ListTargets: %v", err)
	}
	if len(targets) != 2 || targets[0].Collection != "empty_collection" || targets[1].Collection != "orders" {
		t.Errorf("targets = %v", targets)
	}

	stats, err := insp.CollectionStats(ctx, "testdb", "orders")
	if err != nil {
		t.Fatalf("CollectionStats: %v", err)
	}
	if stats.Count != 300 || stats.Size <= 0 {
		t.Errorf("stats = %+v", stats)
	}
	if _, ok := stats.IndexSizes["orderNo_1"]; !ok {
		t.Errorf("indexSizes = %v, want orderNo_1", stats.IndexSizes)
	}

	n, err := insp.EstimatedDocumentCount(ctx, "testdb", "orders")
	if err != nil || n != 300 {
		t.Errorf("count = %d, err = %v", n, err)
	}

	sample, src := insp.Sample(ctx, "testdb", "orders", SampleOptions{Size: 50, MaxScan: 200, Rand: rand.New(rand.NewPCG(42, 0))})
	if src != SourceServerSample || len(sample) != 50 {
		t.Errorf("sample: %d docs from %s", len(sample), src)
	}

	filter, err := ParseFilter("", `{"status": "paid"}`)
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}
	sample, src = insp.Sample(ctx, "testdb", "orders", SampleOptions{Size: 20, MaxScan: 200, Filter: filter})
	if src != SourceFiltered || len(sample) != 20 {
		t.Errorf("filtered sample: %d docs from %s", len(sample), src)
	}

	sample, src = insp.Sample(ctx, "testdb", "empty_collection", SampleOptions{Size: 20, MaxScan: 200})
	if len(sample) != 0 || src != SourceNone {
		t.Errorf("empty collection sampled %d docs from %s", len(sample), src)
	}
}
