package mongo

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Config holds MongoDB connection settings.
type Config struct {
	URI     string
	Timeout time.Duration // connect, server selection and per-command budget; 0 = driver defaults
	Logger  *slog.Logger  // nil = discard
}

// Target names one collection to analyze.
type Target struct {
	Database   string `json:"db"`
	Collection string `json:"collection"`
}

// Namespace returns "db.collection".
func (t Target) Namespace() string {
	return t.Database + "." + t.Collection
}

// CollStats is the subset of the collStats command the reports use.
type CollStats struct {
	Count          int64            `json:"count"`
	Size           int64            `json:"size"`       // uncompressed data size in bytes
	AvgObjSize     int64            `json:"avgObjSize"` // average document size in bytes
	StorageSize    int64            `json:"storageSize"`
	TotalIndexSize int64            `json:"totalIndexSize"`
	IndexSizes     map[string]int64 `json:"indexSizes"`
}

// SampleSource records which sampling strategy produced a sample.
type SampleSource string

const (
	SourceFiltered     SampleSource = "filter"
	SourceServerSample SampleSource = "$sample"
	SourceScan         SampleSource = "scan"
	SourceNone         SampleSource = "none"
)

// SampleOptions bound one sampling call.
type SampleOptions struct {
	Size    int64      // wanted sample size
	MaxScan int64      // hard cap on documents read from the server
	Filter  bson.D     // non-nil restricts sampling to matching documents
	Rand    *rand.Rand // drives scan subsampling; nil = fixed seed
}

// limit is the number of documents a direct query may return.
func (o SampleOptions) limit() int64 {
	return max(0, min(o.Size, o.MaxScan))
}

// Opcounters are the cumulative operation counters from serverStatus.
type Opcounters struct {
	Insert  int64 `json:"insert"`
	Query   int64 `json:"query"`
	Update  int64 `json:"update"`
	Delete  int64 `json:"delete"`
	Getmore int64 `json:"getmore"`
	Command int64 `json:"command"`
}

// Reads is query + getmore.
func (o Opcounters) Reads() int64 {
	return o.Query + o.Getmore
}

// Writes is insert + update + delete.
func (o Opcounters) Writes() int64 {
	return o.Insert + o.Update + o.Delete
}

// Ratio is reads per write, or the read count when nothing was written.
func (o Opcounters) Ratio() float64 {
	if w := o.Writes(); w > 0 {
		return float64(o.Reads()) / float64(w)
	}
	return float64(o.Reads())
}

// ServerInfo holds best-effort server metadata. Missing parts stay zero.
type ServerInfo struct {
	Version    string      `json:"version"`
	GitVersion string      `json:"gitVersion,omitempty"`
	Hello      bson.M      `json:"hello,omitempty"`
	Opcounters *Opcounters `json:"opcounters,omitempty"`
	Uptime     int64       `json:"uptimeSeconds,omitempty"`
	Errors     []string    `json:"errors,omitempty"`
}
