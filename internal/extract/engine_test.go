package extract_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/north-cloud/problemsync/internal/domain"
	"github.com/jonesrussell/north-cloud/problemsync/internal/extract"
)

const longStatement = "Given an array of integers nums and an integer target, return indices of the two numbers such that they add up to target."

var twoSum = domain.WorkItem{
	ID:    "1",
	Title: "Two Sum",
	URL:   "https://leetcode.com/problems/two-sum/",
}

func page(body string) []byte {
	return []byte("<html><head><title>t</title></head><body>" + body + "</body></html>")
}

func TestEngine_Extract_FullPage(t *testing.T) {
	t.Parallel()

	body := page(`
		<div class="gap-1"></div><div><div class="elfjS"><p>` + longStatement + `</p></div></div>
		<div class="pl-7"><a class="text-text-secondary">Array</a><a class="text-text-secondary">Hash Table</a><a class="text-text-secondary">Array</a></div>
		<div class="transition-all"><div class="elfjS">Try a hash map of seen values.</div></div>
		<a href="/problems/two-sum/">Two Sum</a>
		<a href="/problems/3sum/description/">3Sum</a>
		<a href="https://leetcode.com/problems/4sum/">4Sum</a>
		<a href="/problems/3sum/">3Sum again</a>
	`)

	record := extract.NewEngine(extract.DefaultProfile()).Extract(twoSum, body)

	assert.Empty(t, record.Missing)
	assert.Empty(t, record.ExtractionError)
	assert.Contains(t, record.Description, "add up to target")
	assert.Equal(t, []string{"Array", "Hash Table"}, record.Topics)
	assert.Equal(t, []string{"Try a hash map of seen values."}, record.Hints)

	want := []domain.RelatedItem{
		{Title: "3Sum", URL: "https://leetcode.com/problems/3sum/"},
		{Title: "4Sum", URL: "https://leetcode.com/problems/4sum/"},
	}
	if diff := cmp.Diff(want, record.Related); diff != "" {
		t.Errorf("related mismatch (-want +got):\n%s", diff)
	}
}

func TestEngine_Extract_DescriptionFallback(t *testing.T) {
	t.Parallel()

	engine := extract.NewEngine(extract.DefaultProfile())

	t.Run("fallback marker only", func(t *testing.T) {
		t.Parallel()

		record := engine.Extract(twoSum, page(`<div data-track-load="description_content">`+longStatement+`</div>`))

		assert.NotEmpty(t, record.Description)
		assert.NotContains(t, record.Missing, domain.FieldDescription)
	})

	t.Run("no marker", func(t *testing.T) {
		t.Parallel()

		record := engine.Extract(twoSum, page(`<p>nothing here</p>`))

		assert.Empty(t, record.Description)
		assert.Contains(t, record.Missing, domain.FieldDescription)
		assert.True(t, record.Partial())
	})
}

func TestEngine_Extract_ShortMatchFallsThrough(t *testing.T) {
	t.Parallel()

	body := page(`<div class="elfjS">too short</div><article>` + longStatement + `</article>`)

	record := extract.NewEngine(extract.DefaultProfile()).Extract(twoSum, body)

	assert.Contains(t, record.Description, "two numbers")
}

func TestEngine_Extract_Heuristic(t *testing.T) {
	t.Parallel()

	statement := strings.Repeat("Some statement text. ", 8) + "Example 1: Input: nums = [2,7] Output: [0,1]"
	body := page(`<section><span>` + statement + `</span></section><div id="outer"><div id="inner">` + statement + `</div></div>`)

	record := extract.NewEngine(extract.DefaultProfile()).Extract(twoSum, body)

	assert.Contains(t, record.Description, "Example 1")
	assert.NotContains(t, record.Missing, domain.FieldDescription)
}

func TestEngine_Extract_Deterministic(t *testing.T) {
	t.Parallel()

	body := page(`<article>` + longStatement + `</article><a class="topic-tag">Array</a>`)
	engine := extract.NewEngine(extract.DefaultProfile())

	first := engine.Extract(twoSum, body)
	second := engine.Extract(twoSum, body)

	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("records differ (-first +second):\n%s", diff)
	}
}

func TestEngine_Extract_SelfLinkOnlyIsMissing(t *testing.T) {
	t.Parallel()

	body := page(`<article>` + longStatement + `</article><a href="/problems/two-sum/solutions/">Solutions</a>`)

	record := extract.NewEngine(extract.DefaultProfile()).Extract(twoSum, body)

	assert.Nil(t, record.Related)
	assert.Contains(t, record.Missing, domain.FieldRelated)
}

func TestEngine_Extract_CustomStrategies(t *testing.T) {
	t.Parallel()

	calls := 0
	s := extract.Strategies{
		Description: []extract.Strategy[string]{
			{Name: "never", Fn: func(*goquery.Document) (string, bool) { calls++; return "", false }},
			{Name: "title", Fn: func(doc *goquery.Document) (string, bool) {
				calls++
				return doc.Find("title").Text(), true
			}},
			{Name: "unreached", Fn: func(*goquery.Document) (string, bool) { t.Fatal("strategy after a match ran"); return "", false }},
		},
	}

	record := extract.NewEngineWithStrategies(extract.DefaultProfile(), s).Extract(twoSum, page(""))

	assert.Equal(t, "t", record.Description)
	assert.Equal(t, 2, calls)
	assert.ElementsMatch(t,
		[]string{domain.FieldTopics, domain.FieldHints, domain.FieldRelated}, record.Missing)
}

func TestTextList_BoundsAndDedup(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 60)
	body := page(`<a class="topic-tag"> Array </a><a class="topic-tag">` + long + `</a><a class="topic-tag">Array</a><a class="topic-tag">Graph</a>`)

	profile := extract.DefaultProfile()
	profile.Topics.MaxItems = 1

	record := extract.NewEngine(profile).Extract(twoSum, body)

	assert.Equal(t, []string{"Array"}, record.Topics)
}

func TestLoadProfile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "selectors.yml")
	yml := `
base_url: https://example.com
description:
  selectors: ["#statement"]
  min_length: 5
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	p, err := extract.LoadProfile(path)
	require.NoError(t, err)

	assert.Equal(t, "https://example.com", p.BaseURL)
	assert.Equal(t, []string{"#statement"}, p.Description.Selectors)
	assert.Equal(t, 5, p.Description.MinLength)
	assert.Equal(t, extract.DefaultProfile().Topics, p.Topics)

	record := extract.NewEngine(p).Extract(twoSum, page(`<div id="statement">hello world</div>`))
	assert.Equal(t, "hello world", record.Description)

	_, err = extract.LoadProfile(filepath.Join(t.TempDir(), "missing.yml"))
	require.Error(t, err)
}
