package worker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// spellingLexicon maps UK spellings to US spellings for the vocabulary
// that actually shows up in study guides. Localization applies it in
// either direction as whole-word, case-insensitive substitution.
var spellingLexicon = [][2]string{
	{"colour", "color"},
	{"colours", "colors"},
	{"favourite", "favorite"},
	{"favourites", "favorites"},
	{"behaviour", "behavior"},
	{"behaviours", "behaviors"},
	{"organise", "organize"},
	{"organised", "organized"},
	{"organising", "organizing"},
	{"organisation", "organization"},
	{"organisations", "organizations"},
	{"analyse", "analyze"},
	{"analysed", "analyzed"},
	{"analysing", "analyzing"},
	{"summarise", "summarize"},
	{"summarised", "summarized"},
	{"summarising", "summarizing"},
	{"recognise", "recognize"},
	{"recognised", "recognized"},
	{"memorise", "memorize"},
	{"memorised", "memorized"},
	{"practise", "practice"},
	{"practised", "practiced"},
	{"centre", "center"},
	{"centres", "centers"},
	{"metre", "meter"},
	{"metres", "meters"},
	{"litre", "liter"},
	{"litres", "liters"},
	{"theatre", "theater"},
	{"theatres", "theaters"},
	{"defence", "defense"},
	{"licence", "license"},
	{"catalogue", "catalog"},
	{"dialogue", "dialog"},
	{"programme", "program"},
	{"programmes", "programs"},
	{"grey", "gray"},
	{"maths", "math"},
	{"travelling", "traveling"},
	{"travelled", "traveled"},
	{"labelled", "labeled"},
	{"modelling", "modeling"},
	{"neighbour", "neighbor"},
	{"neighbours", "neighbors"},
}

type lexeme struct {
	uk, us string
	reUK   *regexp.Regexp
	reUS   *regexp.Regexp
}

var lexemes = buildLexemes()

func buildLexemes() []lexeme {
	out := make([]lexeme, 0, len(spellingLexicon))
	for _, pair := range spellingLexicon {
		out = append(out, lexeme{
			uk:   pair[0],
			us:   pair[1],
			reUK: regexp.MustCompile(`(?i)\b` + pair[0] + `\b`),
			reUS: regexp.MustCompile(`(?i)\b` + pair[1] + `\b`),
		})
	}
	return out
}

// LocalizeSpelling rewrites region-specific vocabulary toward the
// requested variant, preserving the capitalization of each match.
func LocalizeSpelling(text string, uk bool) string {
	for _, lx := range lexemes {
		re, target := lx.reUK, lx.us
		if uk {
			re, target = lx.reUS, lx.uk
		}
		text = re.ReplaceAllStringFunc(text, func(match string) string {
			return matchCase(match, target)
		})
	}
	return text
}

func matchCase(src, repl string) string {
	if src == strings.ToUpper(src) && strings.ToLower(src) != src {
		return strings.ToUpper(repl)
	}
	runes := []rune(src)
	if len(runes) > 0 && unicode.IsUpper(runes[0]) {
		rr := []rune(repl)
		rr[0] = unicode.ToUpper(rr[0])
		return string(rr)
	}
	return repl
}

var (
	reListItem   = regexp.MustCompile(`^(\-|\*|\+|\d+[.)])\s+`)
	reImage      = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	reLink       = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	reEmphasis   = regexp.MustCompile(`(\*\*|__|\*|_|` + "`" + `)`)
	reHeadingTag = regexp.MustCompile(`^#+\s*`)
)

// BuildSpokenScript converts a study guide's markdown into spoken
// language: headings become transitions, list items become points,
// emphasis and links collapse to plain text, and code fences are
// dropped. A localized intro and outro wrap the body.
func BuildSpokenScript(title, body string, uk bool) string {
	var out []string

	intro := fmt.Sprintf("Welcome to your audio study guide on %s. Let's get started.", strings.TrimSpace(title))
	out = append(out, LocalizeSpelling(intro, uk))

	inFence := false
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence || trimmed == "" {
			continue
		}

		spoken := stripInline(trimmed)
		switch {
		case strings.HasPrefix(trimmed, "# "):
			spoken = "Main topic: " + stripInline(reHeadingTag.ReplaceAllString(trimmed, "")) + "."
		case strings.HasPrefix(trimmed, "##"):
			spoken = "Now, let's talk about: " + stripInline(reHeadingTag.ReplaceAllString(trimmed, "")) + "."
		case reListItem.MatchString(trimmed):
			spoken = "Point: " + stripInline(reListItem.ReplaceAllString(trimmed, ""))
			if !strings.HasSuffix(spoken, ".") && !strings.HasSuffix(spoken, "!") && !strings.HasSuffix(spoken, "?") {
				spoken += "."
			}
		}
		if spoken != "" {
			out = append(out, spoken)
		}
	}

	outro := "That wraps up this study guide. Take a moment to summarize the key ideas in your own words, and come back to review them again soon."
	out = append(out, LocalizeSpelling(outro, uk))

	return strings.Join(out, " ")
}

func stripInline(s string) string {
	s = reImage.ReplaceAllString(s, "")
	s = reLink.ReplaceAllString(s, "$1")
	s = reEmphasis.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// splitSentences breaks text after terminal punctuation followed by
// whitespace. The trailing fragment, if any, counts as a sentence.
func splitSentences(text string) []string {
	var sentences []string
	runes := []rune(text)
	start := 0
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '.' || r == '!' || r == '?' {
			end := i + 1
			if end >= len(runes) || unicode.IsSpace(runes[end]) {
				s := strings.TrimSpace(string(runes[start:end]))
				if s != "" {
					sentences = append(sentences, s)
				}
				start = end
			}
		}
	}
	if tail := strings.TrimSpace(string(runes[start:])); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// ChunkScript splits a script on sentence boundaries into pieces no
// larger than softLimit characters. Any piece still over hardLimit is
// force-split at the hard boundary; an oversized chunk is a guaranteed
// provider rejection, so this pass is never skipped.
func ChunkScript(script string, softLimit, hardLimit int) []string {
	if softLimit <= 0 {
		softLimit = 3000
	}
	if hardLimit < softLimit {
		hardLimit = softLimit
	}

	var chunks []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if s := strings.TrimSpace(current.String()); s != "" {
			chunks = append(chunks, s)
		}
		current.Reset()
		currentLen = 0
	}

	for _, sentence := range splitSentences(script) {
		sentenceLen := len([]rune(sentence))
		if currentLen > 0 && currentLen+1+sentenceLen > softLimit {
			flush()
		}
		if currentLen > 0 {
			current.WriteString(" ")
			currentLen++
		}
		current.WriteString(sentence)
		currentLen += sentenceLen
	}
	flush()

	// Last resort: force-split anything a run-on sentence pushed past
	// the provider's hard ceiling.
	var safe []string
	for _, chunk := range chunks {
		runes := []rune(chunk)
		for len(runes) > hardLimit {
			safe = append(safe, string(runes[:hardLimit]))
			runes = runes[hardLimit:]
		}
		if len(runes) > 0 {
			safe = append(safe, string(runes))
		}
	}
	return safe
}

// EstimateDurationSeconds approximates listening time from script
// length at a fixed reading speed. It is a heuristic, not a measurement
// of the produced audio.
func EstimateDurationSeconds(scriptLength, charsPerSecond int) int {
	if charsPerSecond <= 0 {
		charsPerSecond = 15
	}
	seconds := scriptLength / charsPerSecond
	if seconds < 1 && scriptLength > 0 {
		seconds = 1
	}
	return seconds
}
