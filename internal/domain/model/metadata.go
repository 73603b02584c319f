package model

// MetaDataKeyLastUpdated stores the timestamp of the last successful sync pass.
const MetaDataKeyLastUpdated = "LastUpdated"

// MetaData is a generic key/value row used for store-level bookkeeping.
type MetaData struct {
	ID    int64
	Key   string
	Value string
}
