package domain

import "time"

// Field names reported in ExtractedRecord.Missing.
const (
	FieldDescription = "description"
	FieldTopics      = "topics"
	FieldHints       = "hints"
	FieldRelated     = "related"
)

// RelatedItem is a link to a similar problem.
type RelatedItem struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ExtractedRecord holds the fields derived from one fetched document.
// Re-extraction produces a new record; records are never mutated.
type ExtractedRecord struct {
	Item             WorkItem      `json:"item"`
	Description      string        `json:"description,omitempty"`
	Topics           []string      `json:"topics,omitempty"`
	Hints            []string      `json:"hints,omitempty"`
	Related          []RelatedItem `json:"related,omitempty"`
	AccessRestricted bool          `json:"access_restricted"`
	ExtractionError  string        `json:"extraction_error,omitempty"`
	Missing          []string      `json:"missing,omitempty"`
	ExtractedAt      time.Time     `json:"extracted_at"`
}

// Partial reports whether any field could not be extracted.
func (r ExtractedRecord) Partial() bool {
	return len(r.Missing) > 0
}
