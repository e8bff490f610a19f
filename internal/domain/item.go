// Package domain holds the types shared by every stage of the sync pipeline.
package domain

import (
	"strings"
)

// Difficulty is the declared difficulty of a problem.
type Difficulty string

// Difficulty values.
const (
	DifficultyEasy    Difficulty = "Easy"
	DifficultyMedium  Difficulty = "Medium"
	DifficultyHard    Difficulty = "Hard"
	DifficultyUnknown Difficulty = "Unknown"
)

// ParseDifficulty accepts the source site's labels ("Easy", "Med.", "Medium", "Hard").
func ParseDifficulty(s string) Difficulty {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return DifficultyEasy
	case "med.", "med", "medium":
		return DifficultyMedium
	case "hard":
		return DifficultyHard
	default:
		return DifficultyUnknown
	}
}

// Emoji returns the marker used on page icons and callouts.
func (d Difficulty) Emoji() string {
	switch d {
	case DifficultyEasy:
		return "🟢"
	case DifficultyMedium:
		return "🟡"
	case DifficultyHard:
		return "🔴"
	default:
		return "📝"
	}
}

// Color returns the callout background color for the difficulty.
func (d Difficulty) Color() string {
	switch d {
	case DifficultyEasy:
		return "green_background"
	case DifficultyMedium:
		return "yellow_background"
	case DifficultyHard:
		return "red_background"
	default:
		return "gray_background"
	}
}

// WorkItem is one problem to fetch and republish. It is immutable once loaded.
type WorkItem struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	URL            string     `json:"url"`
	Difficulty     Difficulty `json:"difficulty"`
	AcceptanceRate string     `json:"acceptance_rate,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
}

// DisplayTitle returns "<id>. <title>" for numeric ids, unless the title
// already starts with the id. Slug ids are left out of the title.
func (w WorkItem) DisplayTitle() string {
	if !isNumeric(w.ID) || strings.HasPrefix(w.Title, w.ID+".") {
		return w.Title
	}
	return w.ID + ". " + w.Title
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
