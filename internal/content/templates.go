package content

import (
	"fmt"
	"strings"
	"text/template"
)

// DefaultLanguages are the solution templates rendered when none are configured.
var DefaultLanguages = []string{"python", "go", "java", "javascript", "cpp"}

type language struct {
	display string
	tmpl    *template.Template
}

var languages = map[string]language{
	"python": {"Python", template.Must(template.New("python").Parse(`# {{.Title}}
# Difficulty: {{.Difficulty}}
# Acceptance: {{.Acceptance}}

class Solution:
    def solve(self):
        # Write your solution here
        pass


if __name__ == "__main__":
    solution = Solution()
    # Add your test cases here
`))},
	"go": {"Go", template.Must(template.New("go").Parse(`// {{.Title}}
// Difficulty: {{.Difficulty}}
// Acceptance: {{.Acceptance}}

package main

func solve() {
	// Write your solution here
}
`))},
	"java": {"Java", template.Must(template.New("java").Parse(`// {{.Title}}
// Difficulty: {{.Difficulty}}

class Solution {
    public void solve() {
        // Write your solution here
    }
}
`))},
	"javascript": {"JavaScript", template.Must(template.New("javascript").Parse(`// {{.Title}}
// Difficulty: {{.Difficulty}}

var solve = function() {
    // Write your solution here
};
`))},
	"cpp": {"C++", template.Must(template.New("cpp").Parse(`// {{.Title}}
// Difficulty: {{.Difficulty}}

class Solution {
public:
    void solve() {
        // Write your solution here
    }
};
`))},
}

type templateData struct {
	Title      string
	Difficulty string
	Acceptance string
	URL        string
}

func checkLanguages(names []string) error {
	var unknown []string
	for _, n := range names {
		if _, ok := languages[n]; !ok {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		return fmt.Errorf("unknown solution languages: %s", strings.Join(unknown, ", "))
	}
	return nil
}

func renderTemplate(lang string, data templateData) (string, error) {
	var sb strings.Builder
	if err := languages[lang].tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", lang, err)
	}
	return sb.String(), nil
}
