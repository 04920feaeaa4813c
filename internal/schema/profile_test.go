package schema

import (
	"fmt"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func TestAggregate_PresenceAndTypes(t *testing.T) {
	samples := []bson.D{
		{{Key: "_id", Value: 1}, {Key: "age", Value: int32(30)}, {Key: "tags", Value: bson.A{"a", "b"}}},
		{{Key: "_id", Value: 2}, {Key: "age", Value: "thirty"}},
		{{Key: "_id", Value: 3}, {Key: "profile", Value: bson.D{{Key: "city", Value: "Oslo"}}}},
	}
	p := Aggregate(samples)

	if p.Sampled != 3 {
		t.Errorf("Sampled = %d, want 3", p.Sampled)
	}
	if got := p.Fields["_id"].Present; got != 3 {
		t.Errorf("_id present = %d, want 3", got)
	}
	age := p.Fields["age"]
	if age.Present != 2 || age.Types["int"] != 1 || age.Types["string"] != 1 {
		t.Errorf("age stats = %+v", age)
	}
	if _, ok := p.Fields["profile"]; ok {
		t.Error("nested documents must not be recorded as their own path")
	}
	if p.Fields["profile.city"].Present != 1 {
		t.Error("expected profile.city to be recorded")
	}
	if len(p.DocSizes) != 3 || len(p.Depths) != 3 {
		t.Errorf("sizes=%d depths=%d, want 3 each", len(p.DocSizes), len(p.Depths))
	}
}

func TestAggregate_ArrayLengthsOnlyForArrays(t *testing.T) {
	samples := []bson.D{
		{{Key: "items", Value: bson.A{1, 2, 3}}, {Key: "n", Value: 1}},
		{{Key: "items", Value: "none"}, {Key: "n", Value: 2}},
		{{Key: "items", Value: bson.A{}}},
	}
	p := Aggregate(samples)

	items := p.Fields["items"]
	if len(items.ArrayLengths) != 2 || items.ArrayLengths[0] != 3 || items.ArrayLengths[1] != 0 {
		t.Errorf("items lengths = %v, want [3 0]", items.ArrayLengths)
	}
	if p.Fields["n"].ArrayLengths != nil {
		t.Error("scalar-only path must not have array lengths")
	}
	// Only the scalar occurrence contributes a distinct value.
	if items.Values.Len() != 1 {
		t.Errorf("items distinct = %d, want 1", items.Values.Len())
	}
}

func TestAggregate_InvariantPresenceMatchesHistogram(t *testing.T) {
	samples := []bson.M{
		{"a": 1, "b": bson.M{"c": nil}},
		{"a": 1.5, "b": bson.M{"c": true}},
		{"d": bson.A{bson.M{"e": 1}}},
	}
	p := Aggregate(samples)
	for _, path := range p.Paths() {
		fs := p.Fields[path]
		total := 0
		for _, n := range fs.Types {
			total += n
		}
		if fs.Present < 1 || total != fs.Present {
			t.Errorf("%s: present=%d histogram total=%d", path, fs.Present, total)
		}
	}
}

func TestAggregate_CardinalityCap(t *testing.T) {
	samples := make([]bson.D, 0, 6000)
	for i := range 6000 {
		samples = append(samples, bson.D{{Key: "k", Value: fmt.Sprintf("v%d", i)}})
	}
	p := Aggregate(samples)
	k := p.Fields["k"]
	if k.Values.Len() != ValueCap {
		t.Errorf("distinct = %d, want %d", k.Values.Len(), ValueCap)
	}
	if !k.Values.AtCapacity() {
		t.Error("sketch should be saturated")
	}
	if k.Present != 6000 || k.Types["string"] != 6000 {
		t.Errorf("presence/type counting must continue past the cap: %+v", k.Types)
	}
}

func TestAggregate_DistinctBySerializedValue(t *testing.T) {
	samples := []bson.D{
		{{Key: "v", Value: 1}},
		{{Key: "v", Value: "1"}},
		{{Key: "v", Value: int64(1)}},
		{{Key: "v", Value: nil}},
	}
	p := Aggregate(samples)
	// 1 and int64(1) serialize identically; "1" and null are distinct.
	if got := p.Fields["v"].Values.Len(); got != 3 {
		t.Errorf("distinct = %d, want 3", got)
	}
}

func TestAggregate_UnencodableSizeSkipped(t *testing.T) {
	samples := []bson.D{
		{{Key: "a", Value: 1}},
		{{Key: "bad", Value: make(chan int)}},
	}
	p := Aggregate(samples)
	if len(p.DocSizes) != 1 {
		t.Errorf("DocSizes = %v, want one entry", p.DocSizes)
	}
	if len(p.Depths) != 2 {
		t.Errorf("Depths = %v, want two entries", p.Depths)
	}
	if p.Fields["bad"] == nil {
		t.Error("document with unknown size must still be flattened")
	}
}

func TestProfile_PathsSorted(t *testing.T) {
	p := Aggregate([]bson.D{{{Key: "z", Value: 1}, {Key: "a", Value: 1}, {Key: "m", Value: bson.D{{Key: "b", Value: 1}}}}})
	paths := p.Paths()
	want := []string{"a", "m.b", "z"}
	for i := range want {
		if paths[i] != want[i] {
			t.Fatalf("Paths = %v, want %v", paths, want)
		}
	}
}

func TestProfile_Empty(t *testing.T) {
	var p *Profile
	if !p.Empty() {
		t.Error("nil profile should be empty")
	}
	if !NewProfile().Empty() {
		t.Error("new profile should be empty")
	}
}
