package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Stage names an item's processing step, used in failure reports.
type Stage string

// Stages.
const (
	StageCheckpoint Stage = "checkpoint"
	StageFetch      Stage = "fetch"
	StageBuild      Stage = "build"
	StagePublish    Stage = "publish"
)

// ItemFailure describes one item that did not make it through.
type ItemFailure struct {
	ItemID string
	Title  string
	Stage  Stage
	Chunk  int
	Error  string
}

// Summary aggregates the outcome of a run.
type Summary struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	Total     int
	Processed int

	Fetched     int
	Cached      int
	Restricted  int
	FetchFailed int
	Partial     int

	Created       int
	Updated       int
	Skipped       int
	PublishFailed int
	Blocks        int

	Failures []ItemFailure
}

// Failed returns the number of items that ended in a failure.
func (s Summary) Failed() int {
	return s.FetchFailed + s.PublishFailed
}

// SuccessRate is the fraction of processed items that did not fail.
// Restricted items count as handled, not failed.
func (s Summary) SuccessRate() float64 {
	if s.Processed == 0 {
		return 0
	}
	return float64(s.Processed-s.Failed()) / float64(s.Processed)
}

// Render writes the summary as tables.
func (s Summary) Render(w io.Writer) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Sync run " + s.RunID)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Items", fmt.Sprintf("%d / %d", s.Processed, s.Total)},
		{"Fetched", s.Fetched},
		{"From checkpoint", s.Cached},
		{"Access restricted", s.Restricted},
		{"Fetch failed", s.FetchFailed},
		{"Partial extraction", s.Partial},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Created", s.Created},
		{"Updated", s.Updated},
		{"Unchanged", s.Skipped},
		{"Publish failed", s.PublishFailed},
		{"Blocks written", s.Blocks},
	})
	t.AppendSeparator()
	t.AppendRows([]table.Row{
		{"Duration", s.Duration.Round(time.Millisecond)},
		{"Success rate", fmt.Sprintf("%.1f%%", s.SuccessRate()*100)},
	})
	t.SetStyle(table.StyleLight)
	t.Render()

	if len(s.Failures) == 0 {
		return
	}

	f := table.NewWriter()
	f.SetOutputMirror(w)
	f.SetTitle("Failures")
	f.AppendHeader(table.Row{"ID", "Title", "Stage", "Chunk", "Error"})
	for _, fail := range s.Failures {
		chunk := "-"
		if fail.Chunk >= 0 {
			chunk = fmt.Sprint(fail.Chunk)
		}
		f.AppendRow(table.Row{fail.ItemID, fail.Title, fail.Stage, chunk, fail.Error})
	}
	f.SetStyle(table.StyleLight)
	f.Render()
}
