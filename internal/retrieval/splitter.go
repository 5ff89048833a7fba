package retrieval

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize = 500
	sentenceSep      = ". "
)

// SplitText greedily packs sentences into chunks of at most maxSize runes.
//
// Sentences are delimited by ". ". Each sentence keeps its period and
// sentences inside a chunk are joined by a single space, so
// strings.Join(chunks, " ") reproduces text exactly. A sentence longer than
// maxSize becomes a chunk of its own.
func SplitText(text string, maxSize int) []string {
	if text == "" {
		return nil
	}
	if maxSize <= 0 {
		maxSize = DefaultChunkSize
	}

	parts := strings.Split(text, sentenceSep)
	var chunks []string
	var cur strings.Builder
	curLen := 0

	for i, p := range parts {
		if i < len(parts)-1 {
			p += "."
		}
		pLen := utf8.RuneCountInString(p)

		if cur.Len() == 0 {
			cur.WriteString(p)
			curLen = pLen
			continue
		}
		if curLen+1+pLen > maxSize {
			chunks = append(chunks, cur.String())
			cur.Reset()
			cur.WriteString(p)
			curLen = pLen
			continue
		}
		cur.WriteByte(' ')
		cur.WriteString(p)
		curLen += 1 + pLen
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}
	return chunks
}
