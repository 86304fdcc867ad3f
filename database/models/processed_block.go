package models

// ProcessedBlock records the monitor's last fully processed block for a chain.
// It is only advanced after a whole batch has been handled, so a crash mid-batch
// re-processes rather than skips.
type ProcessedBlock struct {
	Chain       string `json:"chain" bson:"chain"`
	BlockNumber uint64 `json:"block_number" bson:"block_number"`
}
