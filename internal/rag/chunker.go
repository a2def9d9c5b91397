package rag

import "strings"

// ChunkText splits text into overlapping windows of at most size runes.
// When a window does not reach the end of the text, the cut is moved back
// to the last sentence terminator or newline in the window, provided that
// break point lies past the window midpoint; this avoids splitting
// mid-sentence while keeping every chunk bounded by size. Consecutive
// windows overlap by overlap runes. Trimmed chunks of minChars runes or
// fewer are dropped as noise.
func ChunkText(text string, size, overlap, minChars int) []string {
	if text == "" || size <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}

	runes := []rune(text)
	var chunks []string

	start := 0
	for start < len(runes) {
		// end is the logical window end and may run past the text; the
		// slice below clamps it. Advancing from the unclamped end is what
		// terminates the loop at the tail.
		end := start + size
		cut := end
		if cut > len(runes) {
			cut = len(runes)
		}
		window := runes[start:cut]

		if end < len(runes) {
			if bp := lastBreak(window); bp > size/2 {
				window = window[:bp+1]
				end = start + bp + 1
			}
		}

		chunk := strings.TrimSpace(string(window))
		if len([]rune(chunk)) > minChars {
			chunks = append(chunks, chunk)
		}

		next := end - overlap
		if next <= start {
			break
		}
		start = next
	}

	return chunks
}

// lastBreak returns the index of the last sentence terminator or newline
// in window, or -1.
func lastBreak(window []rune) int {
	for i := len(window) - 1; i >= 0; i-- {
		if window[i] == '.' || window[i] == '\n' {
			return i
		}
	}
	return -1
}
