package revision

import "strconv"

const (
	// DefaultKeyPrefix namespaces every revision entry in the backend.
	DefaultKeyPrefix = "revision-"
	// DefaultIndexKey is the well-known entry holding the serialized index.
	DefaultIndexKey = "revision-index"

	keySeparator = "-"
)

// DeriveKey builds the storage key for a snapshot of documentID taken at
// snapshotTime (unix milliseconds).
func DeriveKey(prefix, documentID string, snapshotTime int64) string {
	return DocumentPrefix(prefix, documentID) + strconv.FormatInt(snapshotTime, 10)
}

// DocumentPrefix returns the key prefix of documentID's revisions. Matching is
// textual: when ids contain the separator, the prefix of "d1" also selects the
// revisions of "d1-5".
func DocumentPrefix(prefix, documentID string) string {
	return prefix + documentID + keySeparator
}
