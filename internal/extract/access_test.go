package extract_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonesrussell/north-cloud/problemsync/internal/extract"
)

func TestAccessDetector_Restricted(t *testing.T) {
	t.Parallel()

	detector := extract.NewAccessDetector(extract.DefaultProfile())
	fullStatement := strings.Repeat("A complete problem statement. ", 10)

	testCases := []struct {
		name string
		body string
		want bool
	}{
		{name: "plain page", body: `<article>` + fullStatement + `</article>`, want: false},
		{name: "lock icon", body: `<div><svg data-icon="lock"></svg></div>`, want: true},
		{name: "premium lock class", body: `<span class="x premium-lock-badge"></span>`, want: true},
		{name: "marker text", body: `<p>Subscribe to unlock this content.</p>`, want: true},
		{name: "marker in attribute", body: `<div class="locked-question"></div>`, want: true},
		{name: "statement beats badge", body: `<article>` + fullStatement + `</article><svg data-icon="lock"></svg>`, want: false},
		{name: "empty", body: ``, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.want, detector.Restricted(page(tc.body)))
		})
	}
}
