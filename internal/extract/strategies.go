package extract

import (
	"net/url"
	"strings"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/jonesrussell/north-cloud/problemsync/internal/domain"
)

// BuildStrategies turns a selector profile into strategy lists. One strategy
// is produced per selector, in profile order.
func BuildStrategies(p SelectorProfile, conv *md.Converter) Strategies {
	var s Strategies

	for _, sel := range p.Description.Selectors {
		s.Description = append(s.Description, DescriptionBySelector(sel, p.Description.MinLength, conv))
	}
	if len(p.HeuristicKeywords) > 0 {
		s.Description = append(s.Description, DescriptionHeuristic(p.HeuristicKeywords, p.HeuristicMinLength, conv))
	}

	for _, sel := range p.Topics.Selectors {
		s.Topics = append(s.Topics, TextList("topics:"+sel, sel, listBounds{
			maxLen: p.Topics.MaxLength, maxItems: p.Topics.MaxItems,
		}))
	}

	for _, sel := range p.Hints.Selectors {
		s.Hints = append(s.Hints, TextList("hints:"+sel, sel, listBounds{
			minLen: p.Hints.MinLength, maxItems: p.Hints.MaxItems,
		}))
	}

	for _, sel := range p.Related.Selectors {
		s.Related = append(s.Related, RelatedLinks(sel, p.BaseURL, p.Related.MaxItems))
	}

	return s
}

// DescriptionBySelector takes the first element matching selector whose text
// is at least minLen characters long and renders it as markdown.
func DescriptionBySelector(selector string, minLen int, conv *md.Converter) Strategy[string] {
	return Strategy[string]{
		Name: "description:" + selector,
		Fn: func(doc *goquery.Document) (string, bool) {
			var out string
			doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
				if textLen(sel) < minLen {
					return true
				}
				out = toMarkdown(sel, conv)
				return out == ""
			})
			return out, out != ""
		},
	}
}

// DescriptionHeuristic picks the smallest div longer than minLen whose text
// mentions any of keywords. It catches layouts none of the selectors know.
func DescriptionHeuristic(keywords []string, minLen int, conv *md.Converter) Strategy[string] {
	return Strategy[string]{
		Name: "description:heuristic",
		Fn: func(doc *goquery.Document) (string, bool) {
			var (
				best    *goquery.Selection
				bestLen int
			)
			doc.Find("div").Each(func(_ int, sel *goquery.Selection) {
				text := strings.TrimSpace(sel.Text())
				n := utf8.RuneCountInString(text)
				if n <= minLen || !containsAny(text, keywords) {
					return
				}
				if best == nil || n < bestLen {
					best, bestLen = sel, n
				}
			})
			if best == nil {
				return "", false
			}
			out := toMarkdown(best, conv)
			return out, out != ""
		},
	}
}

type listBounds struct {
	minLen   int
	maxLen   int
	maxItems int
}

// TextList collects the trimmed, de-duplicated text of every element matching selector.
func TextList(name, selector string, b listBounds) Strategy[[]string] {
	return Strategy[[]string]{
		Name: name,
		Fn: func(doc *goquery.Document) ([]string, bool) {
			seen := make(map[string]struct{})
			var out []string
			doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
				text := collapseSpace(sel.Text())
				n := utf8.RuneCountInString(text)
				if text == "" || n < b.minLen || (b.maxLen > 0 && n >= b.maxLen) {
					return true
				}
				if _, dup := seen[text]; dup {
					return true
				}
				seen[text] = struct{}{}
				out = append(out, text)
				return b.maxItems <= 0 || len(out) < b.maxItems
			})
			return out, len(out) > 0
		},
	}
}

// RelatedLinks collects links to other problems, resolved against baseURL and
// reduced to the canonical /problems/<slug>/ form.
func RelatedLinks(selector, baseURL string, maxItems int) Strategy[[]domain.RelatedItem] {
	base, _ := url.Parse(baseURL)

	return Strategy[[]domain.RelatedItem]{
		Name: "related:" + selector,
		Fn: func(doc *goquery.Document) ([]domain.RelatedItem, bool) {
			seen := make(map[string]struct{})
			var out []domain.RelatedItem
			doc.Find(selector).EachWithBreak(func(_ int, sel *goquery.Selection) bool {
				href, _ := sel.Attr("href")
				title := collapseSpace(sel.Text())
				link := canonicalProblemURL(base, href)
				if title == "" || link == "" {
					return true
				}
				if _, dup := seen[link]; dup {
					return true
				}
				seen[link] = struct{}{}
				out = append(out, domain.RelatedItem{Title: title, URL: link})
				return maxItems <= 0 || len(out) < maxItems
			})
			return out, len(out) > 0
		},
	}
}

// excludeSelf drops links pointing back at the item's own page.
func excludeSelf(items []domain.RelatedItem, itemURL, baseURL string) []domain.RelatedItem {
	base, _ := url.Parse(baseURL)
	self := canonicalProblemURL(base, itemURL)

	out := make([]domain.RelatedItem, 0, len(items))
	for _, it := range items {
		if self != "" && it.URL == self {
			continue
		}
		out = append(out, it)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// canonicalProblemURL resolves href and trims it to scheme://host/problems/<slug>/.
func canonicalProblemURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil || href == "" {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}

	parts := strings.Split(strings.Trim(ref.Path, "/"), "/")
	for i := 0; i < len(parts)-1; i++ {
		if parts[i] == "problems" && parts[i+1] != "" {
			return ref.Scheme + "://" + ref.Host + "/problems/" + parts[i+1] + "/"
		}
	}
	return ""
}

func toMarkdown(sel *goquery.Selection, conv *md.Converter) string {
	if conv != nil {
		if out := strings.TrimSpace(conv.Convert(sel)); out != "" {
			return out
		}
	}
	return strings.TrimSpace(sel.Text())
}

func textLen(sel *goquery.Selection) int {
	return utf8.RuneCountInString(strings.TrimSpace(sel.Text()))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
