// Package normalize folds and cleans free text taken from repository metadata.
//
// Fold prepares text for rule matching:
//  1. drop invalid UTF-8
//  2. NFD, then strip combining marks and format characters
//  3. NFKC
//  4. Unicode case folding
//  5. fold fullwidth forms
//  6. collapse every whitespace run to one space
//
// Clean prepares long-form text for a model prompt without changing its case.
package normalize

import (
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

var foldPool = sync.Pool{
	New: func() any {
		// marks only exist as separate runes after decomposition
		return transform.Chain(
			norm.NFD,
			runes.Remove(runes.In(unicode.Mn)),
			runes.Remove(runes.In(unicode.Cf)),
			norm.NFKC,
			cases.Fold(),
			width.Fold,
		)
	},
}

// Fold returns the match form of s. Safe for concurrent use.
func Fold(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")
	tr := foldPool.Get().(transform.Transformer)
	out, _, err := transform.String(tr, s)
	tr.Reset()
	foldPool.Put(tr)
	if err != nil {
		out = strings.ToLower(s)
	}
	return strings.Join(strings.Fields(out), " ")
}

// Clean strips control characters (keeping newlines and tabs), drops invalid
// UTF-8, trims trailing spaces per line and squeezes runs of blank lines to one.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ToValidUTF8(s, "")
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\r':
			return -1
		case unicode.IsControl(r), r == '\uFEFF':
			return -1
		}
		return r
	}, s)

	var b strings.Builder
	b.Grow(len(s))
	blank := 0
	for line := range strings.SplitSeq(s, "\n") {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		if line == "" {
			blank++
			if blank > 1 {
				continue
			}
		} else {
			blank = 0
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimSpace(b.String())
}

// Truncate returns at most n runes of s
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
