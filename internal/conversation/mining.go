package conversation

import (
	"regexp"
	"strings"
)

var (
	phoneRe = regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}\b`)
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	// namePhoneRe is priority (a): a name immediately followed by a
	// phone number in the same message ("Riley 6048334967").
	namePhoneRe = regexp.MustCompile(`(?i)\b([A-Z][a-zA-Z]+(?:\s[A-Z][a-zA-Z]+)?)\b[\s,:-]{1,3}(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)

	// introRe is priority (b): an introductory phrase.
	introRe = regexp.MustCompile(`(?i)(?:my name is|this is|i'm|i am|call me)\s+([A-Z][a-zA-Z]+(?:\s[A-Z][a-zA-Z]+)?)`)
)

// nameStopWords rejects matches that are common phrases, not names.
var nameStopWords = map[string]bool{
	"hi": true, "hello": true, "hey": true, "thanks": true, "thank": true,
	"sorry": true, "interested": true, "looking": true, "just": true,
	"yes": true, "no": true, "ok": true, "okay": true, "still": true,
}

func isStopWord(name string) bool {
	first := name
	if i := strings.IndexByte(name, ' '); i >= 0 {
		first = name[:i]
	}
	return nameStopWords[strings.ToLower(first)]
}

func normalizePhone(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	return digits
}

// Miner extracts phone/email/name mentions from free-text message
// bodies so a handoff can be staffed without the customer filling out a
// form (spec.md §4.3.1).
type Miner struct{}

func NewMiner() *Miner { return &Miner{} }

// Mine returns the first phone, email, and name it finds in body.
// found is true when at least one of the three was extracted. Name
// extraction tries, in priority order, (a) a name-and-phone
// co-occurrence pattern when a phone is also present in this message,
// then (b) an introductory phrase, rejecting a small stop-word list.
func (m *Miner) Mine(body string) (name, phone, email string, found bool) {
	if match := phoneRe.FindString(body); match != "" {
		phone = normalizePhone(match)
		found = true
	}
	if match := emailRe.FindString(body); match != "" {
		email = strings.ToLower(match)
		found = true
	}

	if phone != "" {
		if match := namePhoneRe.FindStringSubmatch(body); len(match) == 2 && !isStopWord(match[1]) {
			name = match[1]
			found = true
		}
	}
	if name == "" {
		if match := introRe.FindStringSubmatch(body); len(match) == 2 && !isStopWord(match[1]) {
			name = match[1]
			found = true
		}
	}

	return name, phone, email, found
}
