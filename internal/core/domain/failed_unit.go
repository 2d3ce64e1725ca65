package domain

// FailedUnit is a unit whose fetch was dropped after exhausting its retries.
type FailedUnit struct {
	ProjectID   ProjectID   `json:"project_id"`
	Unit        uint64      `json:"unit"`
	FailureType FailureType `json:"failure_type"`
	Error       string      `json:"error_msg"`
	Attempts    int         `json:"attempts"`
	FailedAt    UnixTime    `json:"failed_at"`
}

type FailureType string

const (
	FailureTypeRemote    FailureType = "remote"
	FailureTypeDatabase  FailureType = "database"
	FailureTypePermanent FailureType = "permanent"
)
