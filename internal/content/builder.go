package content

import (
	"fmt"
	"strings"

	"github.com/jonesrussell/north-cloud/problemsync/internal/domain"
)

// DefaultMaxTextLength is the per-block text cap of the document store.
const DefaultMaxTextLength = 2000

const notesPlaceholder = "Add your notes here..."

// Config configures a Builder.
type Config struct {
	MaxTextLength int      `env:"CONTENT_MAX_TEXT_LENGTH" yaml:"max_text_length"`
	Languages     []string `yaml:"languages"`
}

// SetDefaults applies default values for zero-value fields.
func (c *Config) SetDefaults() {
	if c.MaxTextLength <= 0 {
		c.MaxTextLength = DefaultMaxTextLength
	}
	if len(c.Languages) == 0 {
		c.Languages = DefaultLanguages
	}
}

// Builder turns records into block trees. It is stateless after construction.
type Builder struct {
	maxText   int
	languages []string
}

// NewBuilder validates cfg and creates a Builder.
func NewBuilder(cfg Config) (*Builder, error) {
	cfg.SetDefaults()
	if err := checkLanguages(cfg.Languages); err != nil {
		return nil, err
	}
	return &Builder{maxText: cfg.MaxTextLength, languages: cfg.Languages}, nil
}

// Build lays out the page for record. Sections without data are left out.
// No block's text exceeds the configured cap.
func (b *Builder) Build(record domain.ExtractedRecord) (Tree, error) {
	item := record.Item
	var blocks []Block
	add := func(bs ...Block) {
		blocks = append(blocks, bs...)
	}

	add(b.split(Block{
		Kind:  KindCallout,
		Text:  headerText(item),
		Icon:  item.Difficulty.Emoji(),
		Color: item.Difficulty.Color(),
	})...)
	if item.URL != "" {
		add(Block{Kind: KindBookmark, Text: "View problem: " + item.DisplayTitle(), URL: item.URL})
	}
	headerLen := len(blocks)

	if record.Description != "" {
		add(divider(), heading("📝 Problem Description", "blue"))
		add(b.split(Block{Kind: KindParagraph, Text: record.Description})...)
	}

	if len(record.Topics) > 0 {
		add(b.split(Block{Kind: KindParagraph, Text: "🏷️ Topics: " + strings.Join(record.Topics, ", ")})...)
	}

	solution, err := b.solution(item)
	if err != nil {
		return Tree{}, err
	}
	add(divider(), heading("💻 Solution", "green"))
	add(solution...)

	if len(record.Hints) > 0 {
		add(divider(), heading("💡 Hints", "yellow"))
		for i, hint := range record.Hints {
			add(b.split(Block{
				Kind:  KindQuote,
				Text:  fmt.Sprintf("Hint %d: %s", i+1, hint),
				Color: "yellow_background",
			})...)
		}
	}

	if len(record.Related) > 0 {
		add(divider(), heading("🔗 Similar Questions", "purple"))
		for _, rel := range record.Related {
			add(b.split(Block{Kind: KindBulletList, Text: rel.Title, URL: rel.URL})...)
		}
	}

	if base := strings.TrimSuffix(item.URL, "/"); base != "" {
		add(divider(),
			Block{Kind: KindParagraph, Text: "📚 Solutions", URL: base + "/solutions/"},
			Block{Kind: KindParagraph, Text: "💬 Discuss", URL: base + "/discuss/"},
		)
	}

	add(divider(), heading("📌 Notes", ""), Block{Kind: KindParagraph, Text: notesPlaceholder})

	return Tree{Blocks: blocks, HeaderLen: headerLen}, nil
}

func (b *Builder) solution(item domain.WorkItem) ([]Block, error) {
	data := templateData{
		Title:      item.DisplayTitle(),
		Difficulty: string(item.Difficulty),
		Acceptance: acceptance(item),
		URL:        item.URL,
	}

	var blocks []Block
	for _, lang := range b.languages {
		code, err := renderTemplate(lang, data)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, Block{Kind: KindHeading, Level: 3, Text: languages[lang].display})
		blocks = append(blocks, b.split(Block{Kind: KindCode, Text: code, Language: lang})...)
	}

	blocks = append(blocks,
		Block{Kind: KindBulletList, Text: "Time complexity: O(?)"},
		Block{Kind: KindBulletList, Text: "Space complexity: O(?)"},
	)
	return blocks, nil
}

// split copies tmpl once per text segment.
func (b *Builder) split(tmpl Block) []Block {
	segments := SplitText(tmpl.Text, b.maxText)
	if len(segments) <= 1 {
		return []Block{tmpl}
	}

	out := make([]Block, len(segments))
	for i, seg := range segments {
		out[i] = tmpl
		out[i].Text = seg
	}
	return out
}

func headerText(item domain.WorkItem) string {
	return fmt.Sprintf("%s Difficulty: %s\n📊 Acceptance Rate: %s\n🔢 Problem Number: %s",
		item.Difficulty.Emoji(), item.Difficulty, acceptance(item), item.ID)
}

func acceptance(item domain.WorkItem) string {
	if item.AcceptanceRate == "" {
		return "N/A"
	}
	return item.AcceptanceRate
}

func heading(text, color string) Block {
	return Block{Kind: KindHeading, Level: 2, Text: text, Color: color}
}

func divider() Block {
	return Block{Kind: KindDivider}
}
