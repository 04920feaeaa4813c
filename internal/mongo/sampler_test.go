package mongo

import (
	"context"
	"errors"
	"math/rand/v2"
	"slices"
	"testing"

	"go.mongodb.org/mongo-driver/v2/bson"
)

func docs(n int) []bson.D {
	out := make([]bson.D, n)
	for i := range out {
		out[i] = bson.D{{Key: "n", Value: int32(i)}}
	}
	return out
}

func values(sample []bson.D) []int32 {
	out := make([]int32, len(sample))
	for i, d := range sample {
		out[i] = d[0].Value.(int32)
	}
	return out
}

func TestSample_ServerSampleFirst(t *testing.T) {
	mc := &mockClient{aggregateData: docs(5), findData: docs(100)}
	insp := newInspector(mc, Config{})

	got, src := insp.Sample(context.Background(), "app", "users", SampleOptions{Size: 5, MaxScan: 100})
	if src != SourceServerSample || len(got) != 5 {
		t.Errorf("src=%s len=%d, want $sample with 5 docs", src, len(got))
	}
	if mc.findCalls != 0 {
		t.Error("scan must not run when $sample succeeds")
	}
}

func TestSample_FallsBackToScan(t *testing.T) {
	for _, tc := range []struct {
		name string
		mc   *mockClient
	}{
		{"aggregate error", &mockClient{aggregateErr: errors.New("$sample unsupported"), findData: docs(50)}},
		{"aggregate empty", &mockClient{findData: docs(50)}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			insp := newInspector(tc.mc, Config{})
			got, src := insp.Sample(context.Background(), "app", "users", SampleOptions{
				Size: 10, MaxScan: 40, Rand: rand.New(rand.NewPCG(42, 1)),
			})
			if src != SourceScan {
				t.Errorf("src = %s, want scan", src)
			}
			if len(got) != 10 {
				t.Errorf("len = %d, want 10", len(got))
			}
			if tc.mc.findLimits[0] != 40 {
				t.Errorf("scan limit = %d, want MaxScan 40", tc.mc.findLimits[0])
			}
			seen := map[int32]bool{}
			for _, v := range values(got) {
				if v >= 40 {
					t.Errorf("value %d outside the scanned pool", v)
				}
				if seen[v] {
					t.Errorf("value %d drawn twice", v)
				}
				seen[v] = true
			}
		})
	}
}

func TestSample_ScanDeterministic(t *testing.T) {
	run := func() []int32 {
		mc := &mockClient{aggregateErr: errors.New("no $sample"), findData: docs(500)}
		got, _ := newInspector(mc, Config{}).Sample(context.Background(), "app", "users", SampleOptions{
			Size: 20, MaxScan: 500, Rand: rand.New(rand.NewPCG(42, 7)),
		})
		return values(got)
	}
	a, b := run(), run()
	if !slices.Equal(a, b) {
		t.Errorf("same seed produced different samples:\n%v\n%v", a, b)
	}
}

func TestSample_SmallPoolReturnedWhole(t *testing.T) {
	mc := &mockClient{aggregateErr: errors.New("no $sample"), findData: docs(3)}
	got, src := newInspector(mc, Config{}).Sample(context.Background(), "app", "users", SampleOptions{Size: 10, MaxScan: 100})
	if src != SourceScan || !slices.Equal(values(got), []int32{0, 1, 2}) {
		t.Errorf("src=%s got=%v", src, values(got))
	}
}

func TestSample_AllFail(t *testing.T) {
	mc := &mockClient{aggregateErr: errors.New("boom"), findErr: errors.New("boom")}
	got, src := newInspector(mc, Config{}).Sample(context.Background(), "app", "users", SampleOptions{Size: 10, MaxScan: 100})
	if len(got) != 0 || src != SourceNone {
		t.Errorf("got %d docs from %s, want none", len(got), src)
	}
}

func TestSample_FilterSuppressesRandom(t *testing.T) {
	mc := &mockClient{aggregateData: docs(5), findData: docs(30)}
	got, src := newInspector(mc, Config{}).Sample(context.Background(), "app", "users", SampleOptions{
		Size: 10, MaxScan: 20, Filter: bson.D{{Key: "status", Value: "active"}},
	})
	if src != SourceFiltered {
		t.Errorf("src = %s, want filter", src)
	}
	if mc.aggCalls != 0 {
		t.Error("$sample must not run with a filter")
	}
	if mc.findLimits[0] != 10 {
		t.Errorf("limit = %d, want min(S, M) = 10", mc.findLimits[0])
	}
	// natural order, no shuffling
	if !slices.Equal(values(got), []int32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}) {
		t.Errorf("got %v", values(got))
	}
}

func TestSample_FilterNoMatchIsTerminal(t *testing.T) {
	mc := &mockClient{aggregateData: docs(5)}
	got, src := newInspector(mc, Config{}).Sample(context.Background(), "app", "users", SampleOptions{
		Size: 10, MaxScan: 20, Filter: bson.D{{Key: "_id", Value: "missing"}},
	})
	if len(got) != 0 || src != SourceNone {
		t.Errorf("got %d docs from %s, want empty", len(got), src)
	}
	if mc.aggCalls != 0 || mc.findCalls != 1 {
		t.Errorf("aggregate=%d find=%d, want only the filtered find", mc.aggCalls, mc.findCalls)
	}
}

func TestSample_ZeroSizeSkipsServerSample(t *testing.T) {
	mc := &mockClient{aggregateData: docs(5), findData: docs(5)}
	got, src := newInspector(mc, Config{}).Sample(context.Background(), "app", "users", SampleOptions{Size: 0, MaxScan: 100})
	if mc.aggCalls != 0 {
		t.Error("$sample with size 0 must be skipped")
	}
	if len(got) != 0 || src != SourceNone {
		t.Errorf("got %d docs from %s", len(got), src)
	}
}

func TestSubsample(t *testing.T) {
	pool := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}

	got := Subsample(pool, 4, rand.New(rand.NewPCG(1, 2)))
	if len(got) != 4 {
		t.Fatalf("len = %d, want 4", len(got))
	}
	seen := map[int]bool{}
	for _, v := range got {
		if seen[v] {
			t.Errorf("duplicate %d", v)
		}
		seen[v] = true
	}
	if !slices.Equal(pool, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}) {
		t.Error("input pool must not be reordered")
	}
	if whole := Subsample(pool, 10, nil); len(whole) != 10 {
		t.Errorf("pool of size k should be returned whole, got %d", len(whole))
	}
	if a, b := Subsample(pool, 3, nil), Subsample(pool, 3, nil); !slices.Equal(a, b) {
		t.Error("nil generator must be deterministic")
	}
}

func TestSubsample_Uniformity(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 42))
	counts := make([]int, 10)
	pool := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	const rounds = 20000
	for range rounds {
		for _, v := range Subsample(pool, 3, rng) {
			counts[v]++
		}
	}
	// Expected 6000 per element; allow generous slack.
	for v, c := range counts {
		if c < 5400 || c > 6600 {
			t.Errorf("element %d drawn %d times, expected about 6000", v, c)
		}
	}
}

func TestParseFilter(t *testing.T) {
	oid := bson.NewObjectID()

	f, err := ParseFilter(oid.Hex(), `{"ignored": true}`)
	if err != nil || len(f) != 1 || f[0].Value != oid {
		t.Errorf("doc id as ObjectID: %v %v", f, err)
	}

	f, err = ParseFilter("order-123", "")
	if err != nil || f[0].Value != "order-123" {
		t.Errorf("doc id as string: %v %v", f, err)
	}

	f, err = ParseFilter("", `{"status": "active", "_id": {"$oid": "`+oid.Hex()+`"}}`)
	if err != nil {
		t.Fatalf("ParseFilter: %v", err)
	}
	if len(f) != 2 || f[0].Key != "status" || f[1].Value != oid {
		t.Errorf("ext JSON filter = %v", f)
	}

	f, err = ParseFilter("", "{}")
	if err != nil || f == nil || len(f) != 0 {
		t.Errorf("empty object should be an empty, non-nil filter: %v %v", f, err)
	}

	f, err = ParseFilter("", "  ")
	if err != nil || f != nil {
		t.Errorf("blank input means no filter: %v %v", f, err)
	}

	if _, err := ParseFilter("", "{not json"); err == nil {
		t.Error("expected error for malformed filter")
	}
}
