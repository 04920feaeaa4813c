package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	mongoinspect "github.com/ppiankov/mongolens/internal/mongo"
	"go.mongodb.org/mongo-driver/v2/bson"
)

type fakeInspector struct {
	mu sync.Mutex

	serverInfo mongoinspect.ServerInfo
	targets    []mongoinspect.Target
	targetsErr error
	stats      map[string]mongoinspect.CollStats
	counts     map[string]int64
	samples    map[string][]bson.D
	panicOn    string
	closeErr   error

	listTargetsCalls [][]string
	sampleCalls      []mongoinspect.SampleOptions
	closeCalls       int
}

func (f *fakeInspector) Close(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closeCalls++
	return f.closeErr
}

func (f *fakeInspector) ServerInfo(context.Context) mongoinspect.ServerInfo {
	return f.serverInfo
}

func (f *fakeInspector) ListTargets(_ context.Context, dbs, colls []string) ([]mongoinspect.Target, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listTargetsCalls = append(f.listTargetsCalls, append(append([]string(nil), dbs...), colls...))
	if f.targetsErr != nil {
		return nil, f.targetsErr
	}
	return append([]mongoinspect.Target(nil), f.targets...), nil
}

func (f *fakeInspector) CollectionStats(_ context.Context, db, coll string) (mongoinspect.CollStats, error) {
	cs, ok := f.stats[db+"."+coll]
	if !ok {
		return mongoinspect.CollStats{}, errors.New("not authorized")
	}
	return cs, nil
}

func (f *fakeInspector) EstimatedDocumentCount(_ context.Context, db, coll string) (int64, error) {
	return f.counts[db+"."+coll], nil
}

func (f *fakeInspector) Sample(_ context.Context, db, coll string, opts mongoinspect.SampleOptions) ([]bson.D, mongoinspect.SampleSource) {
	ns := db + "." + coll
	if ns == f.panicOn {
		panic("cursor exploded")
	}
	f.mu.Lock()
	f.sampleCalls = append(f.sampleCalls, opts)
	f.mu.Unlock()
	docs := f.samples[ns]
	if len(docs) == 0 {
		return nil, mongoinspect.SourceNone
	}
	return docs, mongoinspect.SourceServerSample
}

// ordersDocs returns n orders with a unique orderNo, a three-valued status
// and an items array of the given length.
func ordersDocs(n, items int) []bson.D {
	docs := make([]bson.D, 0, n)
	for i := range n {
		arr := make(bson.A, items)
		for j := range arr {
			arr[j] = j
		}
		docs = append(docs, bson.D{
			{Key: "_id", Value: i},
			{Key: "orderNo", Value: fmt.Sprintf("ord-%04d", i)},
			{Key: "status", Value: []string{"new", "paid", "shipped"}[i%3]},
			{Key: "items", Value: arr},
		})
	}
	return docs
}

func newFakeShop() *fakeInspector {
	return &fakeInspector{
		serverInfo: mongoinspect.ServerInfo{
			Version:    "7.0.4",
			Opcounters: &mongoinspect.Opcounters{Query: 900, Getmore: 100, Insert: 100, Update: 50, Delete: 50},
		},
		targets: []mongoinspect.Target{
			{Database: "shop", Collection: "empty"},
			{Database: "shop", Collection: "orders"},
		},
		stats: map[string]mongoinspect.CollStats{
			"shop.orders": {Count: 100, StorageSize: 8192, TotalIndexSize: 4096, IndexSizes: map[string]int64{"_id_": 4096}},
		},
		counts:  map[string]int64{"shop.orders": 100},
		samples: map[string][]bson.D{"shop.orders": ordersDocs(100, 2)},
	}
}

func stubInitTelemetry(t *testing.T, fn func(context.Context, string, string) (shutdowner, error)) {
	t.Helper()
	orig := initTelemetry
	initTelemetry = fn
	t.Cleanup(func() {
		initTelemetry = orig
	})
}

func stubNewInspector(t *testing.T, fn func(context.Context, mongoinspect.Config) (inspector, error)) {
	t.Helper()
	orig := newInspector
	newInspector = fn
	t.Cleanup(func() {
		newInspector = orig
	})
}

// useInspector stubs the factory with a fixed fake and records the config it was given.
func useInspector(t *testing.T, fake *fakeInspector) *mongoinspect.Config {
	t.Helper()
	var got mongoinspect.Config
	stubNewInspector(t, func(_ context.Context, cfg mongoinspect.Config) (inspector, error) {
		got = cfg
		return fake, nil
	})
	return &got
}

// inTempDir runs the test from an empty working directory.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(orig) })
	return dir
}

func execCLI(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, key := range []string{"MONGODB_URI", "ENV_FILE"} {
		t.Setenv(key, "")
		_ = os.Unsetenv(key)
	}
	prevURI := uri
	prevLevel := logLevel
	prevFormat := logFormat
	t.Cleanup(func() {
		uri = prevURI
		logLevel = prevLevel
		logFormat = prevFormat
	})
	uri = ""
	logLevel = ""
	logFormat = ""

	cmd := newRootCmd(testBuildInfo)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	var outBuf, errBuf bytes.Buffer
	cmd.SetOut(&outBuf)
	cmd.SetErr(&errBuf)
	cmd.SetArgs(args)
	err = cmd.Execute()
	return outBuf.String(), errBuf.String(), err
}

func requireExitCode(t *testing.T, err error, want int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected ExitError(%d), got nil", want)
	}
	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected ExitError(%d), got %T (%v)", want, err, err)
	}
	if exitErr.Code != want {
		t.Fatalf("exit code = %d, want %d", exitErr.Code, want)
	}
}
