package migration

import (
	"sort"
	"time"
)

// Status is the read-only projection of a migration, and the shape of a ledger row.
type Status struct {
	Name      string     `json:"name"`
	Version   string     `json:"version"`
	Timestamp int64      `json:"timestamp"`
	Checksum  string     `json:"checksum"`
	Applied   bool       `json:"applied"`
	AppliedAt *time.Time `json:"appliedAt,omitempty"`
	// Modified is set when the ledger checksum differs from the file on disk.
	Modified bool `json:"modified,omitempty"`
}

// SortStatuses orders ascending by timestamp, then name.
func SortStatuses(ss []Status) {
	sort.SliceStable(ss, func(i, j int) bool {
		if ss[i].Timestamp != ss[j].Timestamp {
			return ss[i].Timestamp < ss[j].Timestamp
		}
		return ss[i].Name < ss[j].Name
	})
}

// SortStatusesDesc orders newest first, names descending on ties.
func SortStatusesDesc(ss []Status) {
	sort.SliceStable(ss, func(i, j int) bool {
		if ss[i].Timestamp != ss[j].Timestamp {
			return ss[i].Timestamp > ss[j].Timestamp
		}
		return ss[i].Name > ss[j].Name
	})
}
