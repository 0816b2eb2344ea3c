package model

// Rejection records one candidate that failed validation or was filtered by
// an adapter heuristic. Position is 1-based in source order.
type Rejection struct {
	Position int    `json:"position"`
	Reason   string `json:"reason"`
}

// IngestionReport is the per-run outcome returned to the caller. Rejections
// is capped at the pipeline's itemization limit; RejectedCount is always the
// true total even when the list is truncated.
type IngestionReport struct {
	AcceptedCount int         `json:"accepted_count"`
	RejectedCount int         `json:"rejected_count"`
	Rejections    []Rejection `json:"rejections"`
	Truncated     bool        `json:"truncated"`
}

// Reject accumulates one rejection, itemizing at most limit entries.
func (r *IngestionReport) Reject(position int, reason string, limit int) {
	r.RejectedCount++
	if limit > 0 && len(r.Rejections) >= limit {
		r.Truncated = true
		return
	}
	r.Rejections = append(r.Rejections, Rejection{Position: position, Reason: reason})
}

// MappingValidation is the outcome of checking a sync configuration's column
// mapping against the remote field catalog.
type MappingValidation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}
