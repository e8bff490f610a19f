// Package content turns extracted records into ordered, size-capped page blocks.
package content

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// Kind is the type of a content block.
type Kind string

// Block kinds.
const (
	KindHeading    Kind = "heading"
	KindCallout    Kind = "callout"
	KindParagraph  Kind = "paragraph"
	KindQuote      Kind = "quote"
	KindCode       Kind = "code"
	KindBulletList Kind = "bulleted_list_item"
	KindBookmark   Kind = "bookmark"
	KindDivider    Kind = "divider"
)

// Block is one typed unit of page content.
type Block struct {
	Kind Kind
	Text string
	// Level is the heading level (1-3). Unused for other kinds.
	Level    int
	Language string
	Icon     string
	Color    string
	// URL is the bookmark target, or a link applied to the block's text.
	URL string
}

// Tree is an ordered list of blocks. The first HeaderLen blocks are the
// minimal content sent along with container creation.
type Tree struct {
	Blocks    []Block
	HeaderLen int
}

// Header returns the blocks sent on container creation.
func (t Tree) Header() []Block {
	return t.Blocks[:t.HeaderLen]
}

// Body returns the blocks appended after creation.
func (t Tree) Body() []Block {
	return t.Blocks[t.HeaderLen:]
}

// Hash returns a stable digest of the tree's content.
func (t Tree) Hash() string {
	h := sha256.New()
	write := func(s string) {
		h.Write([]byte(strconv.Itoa(len(s))))
		h.Write([]byte{':'})
		h.Write([]byte(s))
	}

	write(strconv.Itoa(t.HeaderLen))
	for _, b := range t.Blocks {
		write(string(b.Kind))
		write(b.Text)
		write(strconv.Itoa(b.Level))
		write(b.Language)
		write(b.Icon)
		write(b.Color)
		write(b.URL)
	}
	return hex.EncodeToString(h.Sum(nil))
}
