package content

// SplitText cuts text into segments of at most limit runes. Cuts prefer a
// newline, then a sentence end, then a space, searched in the second half of
// each window. Joining the segments gives back text exactly.
func SplitText(text string, limit int) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if limit <= 0 || len(runes) <= limit {
		return []string{text}
	}

	var out []string
	for len(runes) > limit {
		cut := cutPoint(runes[:limit])
		out = append(out, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

// cutPoint returns how many runes of window to keep.
func cutPoint(window []rune) int {
	floor := len(window) / 2

	for i := len(window) - 1; i >= floor; i-- {
		if window[i] == '\n' {
			return i + 1
		}
	}
	for i := len(window) - 2; i >= floor; i-- {
		if isSentenceEnd(window[i]) && window[i+1] == ' ' {
			return i + 2
		}
	}
	for i := len(window) - 1; i >= floor; i-- {
		if window[i] == ' ' {
			return i + 1
		}
	}
	return len(window)
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '。'
}
