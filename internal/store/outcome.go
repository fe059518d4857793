package store

// Outcome is the atomic upsert's own report of what it did
type Outcome int

const (
	// OutcomeAdded means the upsert inserted a new row
	OutcomeAdded Outcome = iota + 1
	// OutcomeUpdated means the upsert hit an existing row
	OutcomeUpdated
)

// String returns the outcome name for logs and counts
func (o Outcome) String() string {
	switch o {
	case OutcomeAdded:
		return "added"
	case OutcomeUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

// outcomeFromRowsAffected maps MySQL's affected-rows contract for
// INSERT ... ON DUPLICATE KEY UPDATE onto an Outcome: 1 row for a
// fresh insert, 2 for an update, 0 when the update changed nothing.
// Both of the latter mean the row already existed.
func outcomeFromRowsAffected(rows int64) Outcome {
	if rows == 1 {
		return OutcomeAdded
	}
	return OutcomeUpdated
}
