package analyzer

import (
	"fmt"
	"testing"

	"github.com/ppiankov/mongolens/internal/schema"
	"go.mongodb.org/mongo-driver/v2/bson"
)

func makeSamples(n int) []bson.D {
	samples := make([]bson.D, n)
	for i := range samples {
		items := make(bson.A, i%20)
		for j := range items {
			items[j] = bson.D{{Key: "sku", Value: fmt.Sprintf("sku-%d", j)}, {Key: "qty", Value: j}}
		}
		samples[i] = bson.D{
			{Key: "_id", Value: i},
			{Key: "orderNo", Value: fmt.Sprintf("ord-%06d", i)},
			{Key: "status", Value: []string{"new", "paid", "shipped"}[i%3]},
			{Key: "customer", Value: bson.D{
				{Key: "id", Value: i % 500},
				{Key: "address", Value: bson.D{{Key: "city", Value: fmt.Sprintf("city-%d", i%40)}}},
			}},
			{Key: "items", Value: items},
		}
	}
	return samples
}

func BenchmarkEvaluate_200(b *testing.B) {
	samples := makeSamples(200)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Evaluate(schema.Aggregate(samples), DefaultThresholds())
	}
}

func BenchmarkEvaluate_5000(b *testing.B) {
	samples := makeSamples(5000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Evaluate(schema.Aggregate(samples), DefaultThresholds())
	}
}

func BenchmarkFindings_500(b *testing.B) {
	a := Evaluate(schema.Aggregate(makeSamples(200)), DefaultThresholds())
	results := make([]CollectionResult, 500)
	for i := range results {
		results[i] = CollectionResult{
			Database:      "bench",
			Collection:    fmt.Sprintf("coll_%d", i),
			Schema:        a.Schema,
			Flags:         a.Flags,
			IndexInsights: a.IndexInsights,
		}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Findings(results)
	}
}
