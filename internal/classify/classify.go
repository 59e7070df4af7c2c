// Package classify turns a raw clipboard payload into a content kind
// plus preview metadata. Classification is pure: identical input always
// yields identical output.
package classify

import (
	"regexp"
	"strings"

	"clipd/internal/clip"
)

// Result is the classification of one payload.
type Result struct {
	Kind    clip.Kind
	Preview string
	IconKey string
}

const previewLimit = 160

var (
	urlRe   = regexp.MustCompile(`^(https?|ftp)://[^\s]+$`)
	emailRe = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)
	colorRe = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)
	// Numbers, including signs, separators, decimals, and currency-ish
	// suffixes are excluded on purpose: "42%" is text.
	numberRe = regexp.MustCompile(`^[+\-]?\d[\d_.,]*$`)

	codeSymbols = "{}();=<>[]&|!:+-*/%"
)

// Classify maps a payload to its kind, preview text, and icon key.
// Precedence when several heuristics match:
// Image > URL > Email > Color > Number > Code > Text.
func Classify(p clip.Payload) Result {
	if p.IsImage() {
		return Result{Kind: clip.KindImage, Preview: "Image", IconKey: "photo"}
	}

	text := p.Text
	trimmed := strings.TrimSpace(text)

	kind := clip.KindText
	switch {
	case urlRe.MatchString(trimmed):
		kind = clip.KindURL
	case emailRe.MatchString(trimmed):
		kind = clip.KindEmail
	case colorRe.MatchString(trimmed):
		kind = clip.KindColor
	case numberRe.MatchString(trimmed):
		kind = clip.KindNumber
	case looksLikeCode(text):
		kind = clip.KindCode
	}

	return Result{Kind: kind, Preview: preview(trimmed), IconKey: iconKey(kind)}
}

// looksLikeCode applies a multi-line bias plus a symbol-density
// threshold. Single-line snippets need to be much denser in code
// punctuation than multi-line ones before they stop being plain text.
func looksLikeCode(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}

	lines := strings.Count(trimmed, "\n") + 1
	var symbols int
	for _, r := range trimmed {
		if strings.ContainsRune(codeSymbols, r) {
			symbols++
		}
	}
	density := float64(symbols) / float64(len([]rune(trimmed)))

	if lines >= 3 {
		return density >= 0.03
	}
	if lines == 2 {
		return density >= 0.06
	}
	return density >= 0.12
}

func preview(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) > previewLimit {
		return string(runes[:previewLimit]) + "…"
	}
	return s
}

func iconKey(k clip.Kind) string {
	switch k {
	case clip.KindURL:
		return "link"
	case clip.KindCode:
		return "chevron.left.slash.chevron.right"
	case clip.KindEmail:
		return "envelope"
	case clip.KindNumber:
		return "number"
	case clip.KindColor:
		return "paintpalette"
	case clip.KindImage:
		return "photo"
	default:
		return "doc.text"
	}
}
