package extract

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FieldSelectors lists CSS selectors for one field, tried in order.
type FieldSelectors struct {
	Selectors []string `yaml:"selectors"`
	// MinLength is the minimum text length a match needs to count.
	MinLength int `yaml:"min_length"`
	// MaxLength drops individual values at or above this length (list fields only).
	MaxLength int `yaml:"max_length"`
	// MaxItems caps list fields.
	MaxItems int `yaml:"max_items"`
}

// AccessProfile configures access-restriction detection.
type AccessProfile struct {
	LockSelectors []string `yaml:"lock_selectors"`
	Markers       []string `yaml:"markers"`
	// MinContentLength is the description length above which a page is never restricted.
	MinContentLength int `yaml:"min_content_length"`
}

// SelectorProfile describes how to read one site's problem pages.
type SelectorProfile struct {
	BaseURL     string         `yaml:"base_url"`
	Description FieldSelectors `yaml:"description"`
	// HeuristicKeywords enable the last-resort description scan when non-empty.
	HeuristicKeywords  []string       `yaml:"heuristic_keywords"`
	HeuristicMinLength int            `yaml:"heuristic_min_length"`
	Topics             FieldSelectors `yaml:"topics"`
	Hints              FieldSelectors `yaml:"hints"`
	Related            FieldSelectors `yaml:"related"`
	Access             AccessProfile  `yaml:"access"`
}

// DefaultProfile returns selectors for the current and previous layouts of
// the problem site, newest first.
func DefaultProfile() SelectorProfile {
	return SelectorProfile{
		BaseURL: "https://leetcode.com",
		Description: FieldSelectors{
			Selectors: []string{
				".gap-1+ div .elfjS",
				`[class*="elfjS"]`,
				`[data-track-load="description_content"]`,
				`[class*="content__"]`,
				`[class*="question-content"]`,
				`[class*="description"]`,
				`div[class*="_16yfq"]`,
				`div[class*="problem"] div[class*="content"]`,
				"article",
			},
			MinLength: 50,
		},
		HeuristicKeywords:  []string{"Example", "Input", "Output", "Constraints"},
		HeuristicMinLength: 200,
		Topics: FieldSelectors{
			Selectors: []string{
				".pl-7 .text-text-secondary",
				`a[class*="topic-tag"]`,
				`a[href*="/tag/"]`,
				`[class*="tag"]`,
			},
			MaxLength: 50,
			MaxItems:  20,
		},
		Hints: FieldSelectors{
			Selectors: []string{
				".transition-all .elfjS",
				`[class*="hint"]`,
				`[data-cy*="hint"]`,
				`div[class*="accordion"] div[class*="content"]`,
			},
			MinLength: 11,
			MaxItems:  10,
		},
		Related: FieldSelectors{
			Selectors: []string{`a[href*="/problems/"]`},
			MaxItems:  10,
		},
		Access: AccessProfile{
			LockSelectors: []string{
				`svg[data-icon="lock"]`,
				`[class*="premium-lock"]`,
				`[class*="locked-problem"]`,
			},
			Markers: []string{
				"locked-question",
				"premium-tag",
				"subscribe to unlock",
				"premium only",
				"upgrade to unlock",
				"this problem is available to premium",
				"premium members only",
				"unlock this problem",
			},
			MinContentLength: 100,
		},
	}
}

// LoadProfile reads a YAML selector profile. Sections left empty in the file
// keep their defaults.
func LoadProfile(path string) (SelectorProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SelectorProfile{}, fmt.Errorf("read selector profile %s: %w", path, err)
	}

	var p SelectorProfile
	if err = yaml.Unmarshal(data, &p); err != nil {
		return SelectorProfile{}, fmt.Errorf("parse selector profile %s: %w", path, err)
	}

	return p.WithDefaults(), nil
}

// WithDefaults fills empty sections from DefaultProfile.
func (p SelectorProfile) WithDefaults() SelectorProfile {
	def := DefaultProfile()

	if p.BaseURL == "" {
		p.BaseURL = def.BaseURL
	}
	p.Description = mergeField(p.Description, def.Description)
	p.Topics = mergeField(p.Topics, def.Topics)
	p.Hints = mergeField(p.Hints, def.Hints)
	p.Related = mergeField(p.Related, def.Related)
	if len(p.HeuristicKeywords) == 0 {
		p.HeuristicKeywords = def.HeuristicKeywords
	}
	if p.HeuristicMinLength <= 0 {
		p.HeuristicMinLength = def.HeuristicMinLength
	}
	if len(p.Access.LockSelectors) == 0 {
		p.Access.LockSelectors = def.Access.LockSelectors
	}
	if len(p.Access.Markers) == 0 {
		p.Access.Markers = def.Access.Markers
	}
	if p.Access.MinContentLength <= 0 {
		p.Access.MinContentLength = def.Access.MinContentLength
	}
	return p
}

func mergeField(f, def FieldSelectors) FieldSelectors {
	if len(f.Selectors) == 0 {
		f.Selectors = def.Selectors
	}
	if f.MinLength <= 0 {
		f.MinLength = def.MinLength
	}
	if f.MaxLength <= 0 {
		f.MaxLength = def.MaxLength
	}
	if f.MaxItems <= 0 {
		f.MaxItems = def.MaxItems
	}
	return f
}
