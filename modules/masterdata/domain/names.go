package domain

import (
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// IsJapanese reports whether s contains any kana or kanji.
func IsJapanese(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Hiragana, unicode.Katakana, unicode.Han) {
			return true
		}
	}
	return false
}

// SplitName routes a raw name to the jp or en column. The other side is nil.
func SplitName(raw string) (jp, en any) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if IsJapanese(raw) {
		return raw, nil
	}
	return nil, raw
}

// SystemName derives the ASCII matching key from the first non-empty
// candidate. It returns nil when nothing ASCII remains.
func SystemName(candidates ...string) any {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if s := asciiKey(c); s != "" {
			return s
		}
	}
	return nil
}

func asciiKey(s string) string {
	s = width.Fold.String(s)
	var b strings.Builder
	underscore := false
	for _, r := range s {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			underscore = false
			continue
		}
		if !underscore && b.Len() > 0 {
			b.WriteByte('_')
			underscore = true
		}
	}
	return strings.TrimRight(b.String(), "_")
}
