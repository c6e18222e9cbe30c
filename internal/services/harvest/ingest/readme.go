// Package ingest turns fetched README payloads into stored enrichment text
package ingest

import (
	"html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"repoharvest/internal/core/normalize"
	"repoharvest/internal/platform/logger"
)

// htmlTag matches the markup READMEs commonly embed (centered logos, badges, details blocks).
// Only blank-line separated blocks containing one of these are parsed as HTML, so
// generics like Vec<T> or autolinks elsewhere in the document survive.
var htmlTag = regexp.MustCompile(`(?i)<(?:p|div|img|br|a|h[1-6]|picture|source|details|summary|table|center|span|sup|sub|b|strong|em|ul|ol|li|video|script|style|!--)[\s>/]`)

const blockSel = "p, div, h1, h2, h3, h4, h5, h6, li, tr, details, summary, table, center, picture"

// ReadmeCleaner strips embedded HTML, normalises whitespace and caps length.
// A markdown line that shares a block with HTML is parsed along with it, so
// Vec<T> written right under a <p> still loses its angle brackets.
type ReadmeCleaner struct {
	// StripHTML reduces embedded HTML to its text
	StripHTML bool
	// MaxRunes caps the stored text; 0 keeps everything
	MaxRunes int
}

// NewReadmeCleaner returns a cleaner with the given options
func NewReadmeCleaner(stripHTML bool, maxRunes int) ReadmeCleaner {
	return ReadmeCleaner{StripHTML: stripHTML, MaxRunes: maxRunes}
}

// Clean implements domain.Cleaner
func (c ReadmeCleaner) Clean(s string) string {
	if c.StripHTML && htmlTag.MatchString(s) {
		s = stripHTMLBlocks(s)
	}
	s = normalize.Clean(s)
	if c.MaxRunes > 0 {
		s = normalize.Truncate(s, c.MaxRunes)
	}
	return s
}

// stripHTMLBlocks runs stripHTML over each blank-line separated block that holds
// markup. Fenced code is copied verbatim.
func stripHTMLBlocks(s string) string {
	var (
		out   strings.Builder
		block []string
		fence bool
	)
	flush := func() {
		if len(block) == 0 {
			return
		}
		b := strings.Join(block, "\n")
		if htmlTag.MatchString(b) {
			b = stripHTML(b)
		}
		out.WriteString(b)
		out.WriteByte('\n')
		block = block[:0]
	}
	for ln := range strings.SplitSeq(s, "\n") {
		t := strings.TrimSpace(ln)
		switch {
		case strings.HasPrefix(t, "```") || strings.HasPrefix(t, "~~~"):
			flush()
			fence = !fence
			out.WriteString(ln)
			out.WriteByte('\n')
		case fence:
			out.WriteString(ln)
			out.WriteByte('\n')
		case t == "":
			flush()
			out.WriteByte('\n')
		default:
			block = append(block, ln)
		}
	}
	flush()
	return out.String()
}

func stripHTML(s string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		logger.Named("ingest").Debug().Err(err).Msg("readme html parse failed; keeping raw text")
		return s
	}
	doc.Find("script, style, svg").Remove()
	doc.Find("br").ReplaceWithHtml("\n")
	doc.Find("img").Each(func(_ int, img *goquery.Selection) {
		alt := strings.TrimSpace(img.AttrOr("alt", ""))
		img.ReplaceWithHtml(html.EscapeString(alt))
	})
	doc.Find(blockSel).Each(func(_ int, b *goquery.Selection) {
		b.PrependHtml("\n")
		b.AppendHtml("\n")
	})
	return doc.Text()
}
