package record

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// MetadataAsBSON decodes a record's opaque metadata bytes as a BSON
// document, for callers that stored structured metadata via
// NewMetadataFromBSON. The engine itself never parses metadata; this is
// purely an optional convenience at the boundary.
func MetadataAsBSON(metadata []byte) (bson.D, error) {
	var doc bson.D
	if err := bson.Unmarshal(metadata, &doc); err != nil {
		return nil, fmt.Errorf("metadata is not a valid bson document: %w", err)
	}
	return doc, nil
}

// NewMetadataFromBSON encodes a BSON document into the opaque byte buffer
// the engine stores, the write-side counterpart of MetadataAsBSON.
func NewMetadataFromBSON(doc bson.D) ([]byte, error) {
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}
	return data, nil
}

// MetadataFromJSON converts an extended-JSON string (as accepted over the
// network boundary) into the stored byte representation.
func MetadataFromJSON(jsonStr string) ([]byte, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(jsonStr), true, &doc); err != nil {
		return nil, fmt.Errorf("invalid metadata json: %w", err)
	}
	return bson.Marshal(doc)
}

// MetadataToJSON renders stored metadata bytes back as an extended-JSON
// string.
func MetadataToJSON(metadata []byte) (string, error) {
	var doc bson.D
	if err := bson.Unmarshal(metadata, &doc); err != nil {
		return "", fmt.Errorf("metadata is not a valid bson document: %w", err)
	}
	out, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
