package domain

import "time"

// PublishStatus is the outcome of publishing one item.
type PublishStatus string

// Publish statuses.
const (
	PublishCreated PublishStatus = "created"
	PublishUpdated PublishStatus = "updated"
	PublishSkipped PublishStatus = "skipped"
	PublishFailed  PublishStatus = "failed"
)

// NoChunk marks the absence of a failed chunk index.
const NoChunk = -1

// PublishResult reports what happened to one item's remote document.
type PublishResult struct {
	ItemID         string
	DocumentID     string
	URL            string
	Status         PublishStatus
	FailedChunk    int
	BlocksAppended int
	Err            error
}

// PublishState is the persisted publish ledger for one item. It lets a later
// run find the remote document and resume an interrupted upload.
type PublishState struct {
	ItemID      string    `json:"item_id"`
	DocumentID  string    `json:"document_id"`
	ContentHash string    `json:"content_hash"`
	TotalChunks int       `json:"total_chunks"`
	NextChunk   int       `json:"next_chunk"`
	FailedChunk int       `json:"failed_chunk"`
	Complete    bool      `json:"complete"`
	UpdatedAt   time.Time `json:"updated_at"`
}
