// Package extract turns fetched problem pages into records.
//
// Each field has an ordered list of strategies. The first strategy that
// yields a non-empty value wins; when every strategy comes back empty the
// field stays empty and its name is recorded in the record's Missing list.
package extract

import (
	"bytes"
	"fmt"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/north-cloud/problemsync/internal/domain"
)

// Strategy is one way of reading a field from a parsed page.
// It must be a pure function of the document.
type Strategy[T any] struct {
	Name string
	Fn   func(doc *goquery.Document) (T, bool)
}

// Strategies holds the ordered strategy list for every field.
type Strategies struct {
	Description []Strategy[string]
	Topics      []Strategy[[]string]
	Hints       []Strategy[[]string]
	Related     []Strategy[[]domain.RelatedItem]
}

// Engine extracts records from raw documents.
type Engine struct {
	strategies Strategies
	profile    SelectorProfile
}

// NewEngine builds an engine whose strategies come from profile.
func NewEngine(profile SelectorProfile) *Engine {
	profile = profile.WithDefaults()
	return NewEngineWithStrategies(profile, BuildStrategies(profile, md.NewConverter("", true, nil)))
}

// NewEngineWithStrategies builds an engine with caller-supplied strategies.
func NewEngineWithStrategies(profile SelectorProfile, s Strategies) *Engine {
	return &Engine{strategies: s, profile: profile.WithDefaults()}
}

// Extract parses body and reads every field. It never fails as a whole:
// an unparsable body yields a record with ExtractionError set and every
// field reported missing. ExtractedAt is left for the caller to stamp.
func (e *Engine) Extract(item domain.WorkItem, body []byte) domain.ExtractedRecord {
	record := domain.ExtractedRecord{Item: item}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		record.ExtractionError = fmt.Sprintf("parse html: %v", err)
		record.Missing = []string{
			domain.FieldDescription, domain.FieldTopics, domain.FieldHints, domain.FieldRelated,
		}
		return record
	}

	var missing []string
	note := func(field string, ok bool) {
		if !ok {
			missing = append(missing, field)
		}
	}

	var ok bool
	record.Description, ok = firstMatch(doc, e.strategies.Description)
	note(domain.FieldDescription, ok)

	record.Topics, ok = firstMatch(doc, e.strategies.Topics)
	note(domain.FieldTopics, ok)

	record.Hints, ok = firstMatch(doc, e.strategies.Hints)
	note(domain.FieldHints, ok)

	related, _ := firstMatch(doc, e.strategies.Related)
	record.Related = excludeSelf(related, item.URL, e.profile.BaseURL)
	note(domain.FieldRelated, len(record.Related) > 0)

	record.Missing = missing
	return record
}

// firstMatch returns the first non-empty value produced by strategies.
func firstMatch[T any](doc *goquery.Document, strategies []Strategy[T]) (T, bool) {
	for _, s := range strategies {
		if v, ok := s.Fn(doc); ok {
			return v, true
		}
	}

	var zero T
	return zero, false
}
