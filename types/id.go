package types

import "go.mongodb.org/mongo-driver/v2/bson"

// NewID returns a new identifier encoded as 24 hex characters.
// Identifiers use the object id layout so they stay portable between the
// document store and the relational store.
func NewID() string {
	return bson.NewObjectID().Hex()
}

// ValidID reports whether id is a well-formed identifier.
func ValidID(id string) bool {
	_, err := bson.ObjectIDFromHex(id)
	return err == nil
}
