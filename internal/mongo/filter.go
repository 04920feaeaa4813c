package mongo

import (
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// ParseFilter builds the sampling filter from the --doc-id and --filter
// inputs. docID wins when both are set; it matches an ObjectID when it is a
// valid hex id and the raw string otherwise. filterJSON is relaxed Extended
// JSON, so {"_id": {"$oid": "..."}} and plain JSON both work. A nil filter
// with a nil error means no filter.
func ParseFilter(docID, filterJSON string) (bson.D, error) {
	if docID = strings.TrimSpace(docID); docID != "" {
		if oid, err := bson.ObjectIDFromHex(docID); err == nil {
			return bson.D{{Key: "_id", Value: oid}}, nil
		}
		return bson.D{{Key: "_id", Value: docID}}, nil
	}

	if filterJSON = strings.TrimSpace(filterJSON); filterJSON == "" {
		return nil, nil
	}
	var filter bson.D
	if err := bson.UnmarshalExtJSON([]byte(filterJSON), false, &filter); err != nil {
		return nil, fmt.Errorf("invalid filter JSON: %w", err)
	}
	if filter == nil {
		filter = bson.D{}
	}
	return filter, nil
}
