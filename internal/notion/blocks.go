package notion

import (
	"strconv"

	"github.com/jonesrussell/north-cloud/problemsync/internal/content"
)

type richText struct {
	Type string      `json:"type"`
	Text textContent `json:"text"`
}

type textContent struct {
	Content string `json:"content"`
	Link    *link  `json:"link,omitempty"`
}

type link struct {
	URL string `json:"url"`
}

type emoji struct {
	Type  string `json:"type"`
	Emoji string `json:"emoji"`
}

type textBody struct {
	RichText []richText `json:"rich_text"`
	Color    string     `json:"color,omitempty"`
}

type calloutBody struct {
	RichText []richText `json:"rich_text"`
	Icon     *emoji     `json:"icon,omitempty"`
	Color    string     `json:"color,omitempty"`
}

type codeBody struct {
	RichText []richText `json:"rich_text"`
	Language string     `json:"language"`
}

type bookmarkBody struct {
	URL     string     `json:"url"`
	Caption []richText `json:"caption,omitempty"`
}

// codeLanguages maps template names to the store's code language identifiers.
var codeLanguages = map[string]string{
	"cpp": "c++",
}

func text(s, url string) []richText {
	rt := richText{Type: "text", Text: textContent{Content: s}}
	if url != "" {
		rt.Text.Link = &link{URL: url}
	}
	return []richText{rt}
}

func icon(e string) *emoji {
	if e == "" {
		return nil
	}
	return &emoji{Type: "emoji", Emoji: e}
}

// toBlock renders b in the store's block JSON shape.
func toBlock(b content.Block) map[string]any {
	var (
		typ  string
		body any
	)

	switch b.Kind {
	case content.KindHeading:
		level := min(max(b.Level, 1), 3)
		typ = "heading_" + strconv.Itoa(level)
		body = textBody{RichText: text(b.Text, b.URL), Color: b.Color}
	case content.KindCallout:
		typ = "callout"
		body = calloutBody{RichText: text(b.Text, b.URL), Icon: icon(b.Icon), Color: b.Color}
	case content.KindQuote:
		typ = "quote"
		body = textBody{RichText: text(b.Text, b.URL), Color: b.Color}
	case content.KindCode:
		lang := b.Language
		if mapped, ok := codeLanguages[lang]; ok {
			lang = mapped
		}
		if lang == "" {
			lang = "plain text"
		}
		typ = "code"
		body = codeBody{RichText: text(b.Text, ""), Language: lang}
	case content.KindBulletList:
		typ = "bulleted_list_item"
		body = textBody{RichText: text(b.Text, b.URL), Color: b.Color}
	case content.KindBookmark:
		typ = "bookmark"
		caption := []richText(nil)
		if b.Text != "" {
			caption = text(b.Text, "")
		}
		body = bookmarkBody{URL: b.URL, Caption: caption}
	case content.KindDivider:
		typ = "divider"
		body = struct{}{}
	default:
		typ = "paragraph"
		body = textBody{RichText: text(b.Text, b.URL), Color: b.Color}
	}

	return map[string]any{
		"object": "block",
		"type":   typ,
		typ:      body,
	}
}

func toBlocks(blocks []content.Block) []map[string]any {
	out := make([]map[string]any, len(blocks))
	for i, b := range blocks {
		out[i] = toBlock(b)
	}
	return out
}
