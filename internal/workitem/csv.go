// Package workitem loads the list of problems to sync.
package workitem

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strconv"
	"strings"
	"unicode"

	"github.com/jonesrussell/north-cloud/problemsync/internal/domain"
)

// Column names. The misspelled acceptance column is what the problem list
// export produces; the corrected spelling is accepted too.
const (
	colHref          = "href"
	colQuestion      = "question"
	colAcceptance    = "completation_rate"
	colAcceptanceAlt = "completion_rate"
	colLevel         = "level"
	colTags          = "tags"
)

// ErrMissingColumn is returned when a required header is absent.
var ErrMissingColumn = errors.New("missing required column")

// ErrDuplicateID is returned when two rows resolve to the same item ID.
var ErrDuplicateID = errors.New("duplicate item id")

// LoadCSV reads work items from a CSV file.
func LoadCSV(file string) ([]domain.WorkItem, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, fmt.Errorf("open work items %s: %w", file, err)
	}
	defer f.Close()

	items, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("load work items %s: %w", file, err)
	}
	return items, nil
}

// Parse reads work items from CSV with a header row. Blank rows are skipped.
// Item order follows the input.
func Parse(r io.Reader) ([]domain.WorkItem, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	cols := indexColumns(header)
	for _, required := range []string{colHref, colQuestion, colLevel} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, required)
		}
	}

	var items []domain.WorkItem
	seen := make(map[string]int)
	for line := 2; ; line++ {
		record, readErr := reader.Read()
		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("read row %d: %w", line, readErr)
		}

		get := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		question, href := get(colQuestion), get(colHref)
		if question == "" && href == "" {
			continue
		}

		acceptance := get(colAcceptance)
		if acceptance == "" {
			acceptance = get(colAcceptanceAlt)
		}

		item := newItem(question, href, len(items)+1)
		item.Difficulty = domain.ParseDifficulty(get(colLevel))
		item.AcceptanceRate = acceptance
		item.Tags = splitTags(get(colTags))

		if prev, dup := seen[item.ID]; dup {
			return nil, fmt.Errorf("%w %q on rows %d and %d", ErrDuplicateID, item.ID, prev, line)
		}
		seen[item.ID] = line
		items = append(items, item)
	}

	return items, nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, exists := cols[name]; !exists {
			cols[name] = i
		}
	}
	return cols
}

// newItem derives the ID from the title's number prefix, then the URL slug,
// then the 1-based sequence number.
func newItem(question, href string, seq int) domain.WorkItem {
	item := domain.WorkItem{Title: question, URL: href}

	if number, title, ok := splitNumbered(question); ok {
		item.ID = number
		item.Title = title
		return item
	}
	if slug := slugOf(href); slug != "" {
		item.ID = slug
		return item
	}
	item.ID = strconv.Itoa(seq)
	return item
}

// splitNumbered splits "1. Two Sum" into "1" and "Two Sum".
func splitNumbered(question string) (number, title string, ok bool) {
	number, title, found := strings.Cut(question, ".")
	number = strings.TrimSpace(number)
	if !found || number == "" || strings.IndexFunc(number, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
		return "", "", false
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return "", "", false
	}
	return number, title, true
}

// slugOf returns the last path segment of a problem URL.
func slugOf(href string) string {
	if href == "" {
		return ""
	}
	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	slug := path.Base(strings.TrimRight(u.Path, "/"))
	if slug == "." || slug == "/" {
		return ""
	}
	return slug
}

func splitTags(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == '|' || r == ',' })
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	if len(tags) == 0 {
		return nil
	}
	return tags
}
