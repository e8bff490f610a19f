package content_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/problemsync/internal/content"
	"github.com/jonesrussell/north-cloud/problemsync/internal/domain"
)

func fullRecord() domain.ExtractedRecord {
	return domain.ExtractedRecord{
		Item: domain.WorkItem{
			ID:             "1",
			Title:          "Two Sum",
			URL:            "https://leetcode.com/problems/two-sum/",
			Difficulty:     domain.DifficultyEasy,
			AcceptanceRate: "49.1%",
		},
		Description: "Given an array of integers, return indices of the two numbers.",
		Topics:      []string{"Array", "Hash Table"},
		Hints:       []string{"Use a map.", "One pass is enough."},
		Related:     []domain.RelatedItem{{Title: "3Sum", URL: "https://leetcode.com/problems/3sum/"}},
	}
}

func newBuilder(t *testing.T, cfg content.Config) *content.Builder {
	t.Helper()
	b, err := content.NewBuilder(cfg)
	require.NoError(t, err)
	return b
}

func TestSplitText(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name  string
		text  string
		limit int
		want  int
	}{
		{name: "empty", text: "", limit: 10, want: 0},
		{name: "fits", text: "short", limit: 10, want: 1},
		{name: "exact cap", text: strings.Repeat("a", 10), limit: 10, want: 1},
		{name: "twice cap plus one", text: strings.Repeat("a", 21), limit: 10, want: 3},
		{name: "multibyte", text: strings.Repeat("é", 25), limit: 10, want: 3},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := content.SplitText(tc.text, tc.limit)

			assert.Len(t, got, tc.want)
			assert.Equal(t, tc.text, strings.Join(got, ""))
			for _, seg := range got {
				assert.LessOrEqual(t, utf8.RuneCountInString(seg), tc.limit)
			}
		})
	}
}

func TestSplitText_PrefersBoundaries(t *testing.T) {
	t.Parallel()

	got := content.SplitText("aaaaaa bbb\ncccc dd", 12)
	assert.Equal(t, []string{"aaaaaa bbb\n", "cccc dd"}, got)

	got = content.SplitText("aaaa. bbbb ccccc", 12)
	assert.Equal(t, []string{"aaaa. bbbb ", "ccccc"}, got)

	got = content.SplitText("Hello there. Big cat dog", 20)
	assert.Equal(t, []string{"Hello there. ", "Big cat dog"}, got)
}

func TestBuilder_Build_Layout(t *testing.T) {
	t.Parallel()

	tree, err := newBuilder(t, content.Config{Languages: []string{"python"}}).Build(fullRecord())
	require.NoError(t, err)

	require.Equal(t, 2, tree.HeaderLen)
	header := tree.Header()
	assert.Equal(t, content.KindCallout, header[0].Kind)
	assert.Equal(t, "🟢", header[0].Icon)
	assert.Equal(t, "green_background", header[0].Color)
	assert.Contains(t, header[0].Text, "Acceptance Rate: 49.1%")
	assert.Contains(t, header[0].Text, "Problem Number: 1")
	assert.Equal(t, content.KindBookmark, header[1].Kind)
	assert.Equal(t, "https://leetcode.com/problems/two-sum/", header[1].URL)

	var headings []string
	var quotes []string
	for _, b := range tree.Body() {
		switch b.Kind {
		case content.KindHeading:
			headings = append(headings, b.Text)
		case content.KindQuote:
			quotes = append(quotes, b.Text)
		}
	}

	assert.Equal(t, []string{
		"📝 Problem Description",
		"💻 Solution",
		"Python",
		"💡 Hints",
		"🔗 Similar Questions",
		"📌 Notes",
	}, headings)
	assert.Equal(t, []string{"Hint 1: Use a map.", "Hint 2: One pass is enough."}, quotes)

	last := tree.Blocks[len(tree.Blocks)-1]
	assert.Equal(t, "Add your notes here...", last.Text)
}

func TestBuilder_Build_OmitsEmptySections(t *testing.T) {
	t.Parallel()

	record := domain.ExtractedRecord{Item: domain.WorkItem{ID: "9", Title: "Nine", Difficulty: domain.DifficultyUnknown}}

	tree, err := newBuilder(t, content.Config{Languages: []string{"go"}}).Build(record)
	require.NoError(t, err)

	assert.Equal(t, 1, tree.HeaderLen)
	assert.Contains(t, tree.Blocks[0].Text, "Acceptance Rate: N/A")
	for _, b := range tree.Blocks {
		assert.NotEqual(t, "💡 Hints", b.Text)
		assert.NotEqual(t, "📝 Problem Description", b.Text)
		assert.NotEqual(t, "🔗 Similar Questions", b.Text)
		assert.NotEqual(t, content.KindBookmark, b.Kind)
	}
}

func TestBuilder_Build_CapsLongDescription(t *testing.T) {
	t.Parallel()

	record := fullRecord()
	record.Description = strings.Repeat("x", 2*content.DefaultMaxTextLength+1)

	tree, err := newBuilder(t, content.Config{}).Build(record)
	require.NoError(t, err)

	var paragraphs []string
	for _, b := range tree.Blocks {
		assert.LessOrEqual(t, utf8.RuneCountInString(b.Text), content.DefaultMaxTextLength)
		if b.Kind == content.KindParagraph && strings.HasPrefix(b.Text, "x") {
			paragraphs = append(paragraphs, b.Text)
		}
	}
	assert.Len(t, paragraphs, 3)
	assert.Equal(t, record.Description, strings.Join(paragraphs, ""))
}

func TestBuilder_Build_SolutionTemplates(t *testing.T) {
	t.Parallel()

	tree, err := newBuilder(t, content.Config{}).Build(fullRecord())
	require.NoError(t, err)

	var langs []string
	for _, b := range tree.Blocks {
		if b.Kind == content.KindCode {
			langs = append(langs, b.Language)
			assert.Contains(t, b.Text, "1. Two Sum")
		}
	}
	assert.Equal(t, content.DefaultLanguages, langs)
}

func TestNewBuilder_UnknownLanguage(t *testing.T) {
	t.Parallel()

	_, err := content.NewBuilder(content.Config{Languages: []string{"go", "cobol"}})
	require.ErrorContains(t, err, "cobol")
}

func TestTree_Hash(t *testing.T) {
	t.Parallel()

	b := newBuilder(t, content.Config{})

	first, err := b.Build(fullRecord())
	require.NoError(t, err)
	second, err := b.Build(fullRecord())
	require.NoError(t, err)
	assert.Equal(t, first.Hash(), second.Hash())

	changed := fullRecord()
	changed.Hints = changed.Hints[:1]
	third, err := b.Build(changed)
	require.NoError(t, err)
	assert.NotEqual(t, first.Hash(), third.Hash())
}
