package categorizer

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// NoneAnswer is the reply the model is told to give when nothing fits.
const NoneAnswer = "NONE"

// maxTypoDistance bounds the edit distance accepted when snapping a reply
// onto a known category name.
const maxTypoDistance = 2

// BuildPrompt renders the instruction sent to every provider.
func BuildPrompt(description string, categories []string) string {
	var b strings.Builder
	b.WriteString("You categorize credit card transactions for a personal budget.\n")
	b.WriteString("Pick the single best category for the transaction description below.\n")
	b.WriteString("Answer with the category name exactly as listed, or " + NoneAnswer + " if no category fits.\n")
	b.WriteString("Do not explain your answer.\n\n")
	b.WriteString("Categories:\n")
	for _, c := range categories {
		b.WriteString("- ")
		b.WriteString(c)
		b.WriteString("\n")
	}
	b.WriteString("\nDescription: ")
	b.WriteString(description)
	b.WriteString("\n")
	return b.String()
}

// ParseReply maps a model reply onto one of categories. It tries an exact
// case-insensitive match, then the longest category name contained in the
// reply, then the closest name within maxTypoDistance edits.
func ParseReply(reply string, categories []string) (string, bool) {
	answer := firstLine(reply)
	if answer == "" || strings.EqualFold(answer, NoneAnswer) {
		return "", false
	}

	for _, c := range categories {
		if strings.EqualFold(answer, c) {
			return c, true
		}
	}

	lowered := strings.ToLower(answer)
	best := ""
	for _, c := range categories {
		if c == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(c)) && len(c) > len(best) {
			best = c
		}
	}
	if best != "" {
		return best, true
	}

	bestDistance := maxTypoDistance + 1
	tie := false
	for _, c := range categories {
		d := levenshtein.ComputeDistance(lowered, strings.ToLower(c))
		switch {
		case d < bestDistance:
			best, bestDistance, tie = c, d, false
		case d == bestDistance:
			tie = true
		}
	}
	if best == "" || tie {
		return "", false
	}
	return best, true
}

func firstLine(reply string) string {
	for _, line := range strings.Split(reply, "\n") {
		line = strings.TrimSpace(line)
		line = strings.Trim(line, "`\"'*")
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		if i := strings.Index(line, ":"); i >= 0 && strings.EqualFold(strings.TrimSpace(line[:i]), "category") {
			line = strings.TrimSpace(line[i+1:])
		}
		return strings.TrimRight(line, ".")
	}
	return ""
}
