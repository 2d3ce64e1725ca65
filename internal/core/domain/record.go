package domain

// TxRecord is the normalized row every provider reduces its data to.
//
// Unit is the provider's unit of work: a block number for block-indexed
// providers or a day index for day-indexed ones. Index distinguishes rows
// inside a unit (zkSync stores one row per transaction), and Count is the
// number of transactions the row stands for.
type TxRecord struct {
	ProjectID ProjectID `json:"project_id" db:"project_id"`
	Unit      uint64    `json:"unit"       db:"unit"`
	Index     uint64    `json:"index"      db:"unit_index"`
	Count     uint64    `json:"count"      db:"tx_count"`
	Timestamp UnixTime  `json:"timestamp"  db:"block_timestamp"`
}

// RecordKey is the uniqueness key of a TxRecord.
type RecordKey struct {
	ProjectID ProjectID
	Unit      uint64
	Index     uint64
}

// Key returns the record's uniqueness key.
func (r TxRecord) Key() RecordKey {
	return RecordKey{ProjectID: r.ProjectID, Unit: r.Unit, Index: r.Index}
}

// DailyCount is the number of transactions on a single UTC day.
type DailyCount struct {
	Timestamp UnixTime `json:"timestamp" db:"day"`
	Count     uint64   `json:"count"     db:"tx_count"`
}
