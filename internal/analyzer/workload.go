package analyzer

import (
	mongoinspect "github.com/ppiankov/mongolens/internal/mongo"
	"go.mongodb.org/mongo-driver/v2/x/mongo/driver/connstring"
)

// Read/write ratio bounds for workload classification.
const (
	ReadHeavyRatio  = 5.0
	WriteHeavyRatio = 0.2
)

// Connection advice texts.
const (
	AdviceReadHeavy    = "Workload appears read-heavy; consider readPreference=secondaryPreferred if acceptable"
	AdviceWriteHeavy   = "Workload appears write-heavy; prefer primary reads and ensure retryWrites=true"
	AdviceRetryWrites  = "Ensure retryWrites=true (default on Atlas) for idempotent writes"
	AdviceWriteConcern = "Set writeConcern to match durability needs (e.g., w=majority for strong durability)"
	AdviceMaxPoolSize  = "Tune maxPoolSize based on client concurrency and server capacity"
)

// URIRecommendations derives connection-string advice from the observed
// opcounters and the options the URI already sets. ops may be nil when
// serverStatus was unavailable.
func URIRecommendations(uri string, ops *mongoinspect.Opcounters) []string {
	var recs []string
	if ops != nil && (ops.Reads() > 0 || ops.Writes() > 0) {
		ratio := float64(ops.Reads()) / float64(max(1, ops.Writes()))
		switch {
		case ratio >= ReadHeavyRatio:
			recs = append(recs, AdviceReadHeavy)
		case ratio <= WriteHeavyRatio:
			recs = append(recs, AdviceWriteHeavy)
		}
	}

	// Unparseable URIs get the full generic advice.
	cs, err := connstring.Parse(uri)
	if err != nil {
		cs = &connstring.ConnString{}
	}
	if !cs.RetryWritesSet || !cs.RetryWrites {
		recs = append(recs, AdviceRetryWrites)
	}
	if !cs.WNumberSet && cs.WString == "" {
		recs = append(recs, AdviceWriteConcern)
	}
	if !cs.MaxPoolSizeSet {
		recs = append(recs, AdviceMaxPoolSize)
	}
	return recs
}
