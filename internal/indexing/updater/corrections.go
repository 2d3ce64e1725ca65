package updater

import (
	"slices"

	"github.com/vietddude/txsync/internal/core/domain"
)

// Correction patches records a provider is known to report wrongly.
type Correction struct {
	Project domain.ProjectID
	Unit    uint64
	Reason  string
	Apply   func(records []domain.TxRecord)
}

// Corrections lists every known provider data defect.
var Corrections = []Correction{
	{
		Project: domain.ProjectZksync,
		Unit:    427,
		Reason:  "second transaction repeats the first one's blockIndex",
		Apply: func(records []domain.TxRecord) {
			if len(records) > 1 {
				records[1].Index++
			}
		},
	},
}

// applyCorrections returns records with every matching correction applied.
// The input slice is not modified.
func applyCorrections(table []Correction, project domain.ProjectID, unit uint64, records []domain.TxRecord) []domain.TxRecord {
	var out []domain.TxRecord
	for _, c := range table {
		if c.Project != project || c.Unit != unit {
			continue
		}
		if out == nil {
			out = slices.Clone(records)
		}
		c.Apply(out)
	}
	if out == nil {
		return records
	}
	return out
}
