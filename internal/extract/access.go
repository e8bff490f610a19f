package extract

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// AccessDetector recognizes pages whose content sits behind a paywall or login.
type AccessDetector struct {
	contentSelectors []string
	minContent       int
	lockSelectors    []string
	markers          []string
}

// NewAccessDetector builds a detector from the profile's description and access sections.
func NewAccessDetector(p SelectorProfile) *AccessDetector {
	p = p.WithDefaults()

	markers := make([]string, len(p.Access.Markers))
	for i, m := range p.Access.Markers {
		markers[i] = strings.ToLower(m)
	}

	return &AccessDetector{
		contentSelectors: p.Description.Selectors,
		minContent:       p.Access.MinContentLength,
		lockSelectors:    p.Access.LockSelectors,
		markers:          markers,
	}
}

// Restricted reports whether body is an access-restricted page. A page that
// shows a substantial description is never restricted, whatever badges it carries.
func (d *AccessDetector) Restricted(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err == nil {
		for _, sel := range d.contentSelectors {
			if textLen(doc.Find(sel).First()) > d.minContent {
				return false
			}
		}
		for _, sel := range d.lockSelectors {
			if doc.Find(sel).Length() > 0 {
				return true
			}
		}
	}

	lower := strings.ToLower(string(body))
	for _, m := range d.markers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
