// Package detect implements line classification over finalized speech-to-text
// transcripts: voicemail greetings, IVR menu instructions, human presence and
// conversation-closing phrases.
//
// All functions are pure and operate on a single transcript line. They are
// best-effort pattern matches over noisy STT output; false positives are an
// accepted cost of the heuristic.
package detect

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// voicemailPhrases match recorded voicemail greetings in Spanish and English.
var voicemailPhrases = []string{
	"buzón", "buzon", "mensaje", "señal", "tono", "beep",
	"voicemail", "mailbox", "leave a message", "not available",
}

// farewellPhrases close a conversation, from either party.
var farewellPhrases = []string{
	"adiós", "adios", "hasta luego", "hasta pronto", "nos vemos",
	"que tenga buen día", "excelente día", "gracias por su tiempo",
	"goodbye", "bye", "have a good day",
}

// greetingPhrases are the ways a human answers a phone in Mexican Spanish.
var greetingPhrases = []string{
	"bueno", "hola", "diga", "dígame", "digame", "aló", "alo", "buenas",
	"buenos días", "buenas tardes", "hello",
}

// humanLengthThreshold: any line longer than this many runes is treated as a
// human speaking even without an explicit greeting. Recorded systems tend to
// trip the phrase checks above before reaching this fallback.
const humanLengthThreshold = 15

// MenuCategory classifies what an IVR menu option leads to.
type MenuCategory string

const (
	CategoryPurchasing MenuCategory = "purchasing"
	CategorySales      MenuCategory = "sales"
	CategoryOperator   MenuCategory = "operator"
)

// categoryKeywords maps each menu category to the keywords that identify it
// in the text preceding a "press N" instruction.
var categoryKeywords = map[MenuCategory][]string{
	CategoryPurchasing: {"compra", "compras", "purchasing", "procurement"},
	CategorySales:      {"venta", "ventas", "sales", "comercial"},
	CategoryOperator:   {"operadora", "operator", "recepción", "recepcion", "reception"},
}

// categoryPriority ranks categories for digit selection. Lower is better:
// the purchasing department is the sales call's actual target.
var categoryPriority = map[MenuCategory]int{
	CategoryPurchasing: 1,
	CategorySales:      2,
	CategoryOperator:   3,
}

// pressPattern matches spoken menu instructions like "marque 2", "presione 1"
// or "press 10". Multi-digit extensions are captured whole.
var pressPattern = regexp.MustCompile(`(?:marque|presione|oprima|press)\s*(?:el\s+)?(\d+)`)

// categoryWindow is how far back (in bytes of the lowercased line) to look
// for a category keyword before a matched press instruction.
const categoryWindow = 50

// IsVoicemail reports whether text sounds like a voicemail greeting.
// Matching is case-insensitive substring search.
func IsVoicemail(text string) bool {
	return containsAny(strings.ToLower(text), voicemailPhrases)
}

// IsFarewell reports whether text contains a conversation-closing phrase.
func IsFarewell(text string) bool {
	return containsAny(strings.ToLower(text), farewellPhrases)
}

// IsHumanGreeting reports whether text contains an explicit phone greeting.
func IsHumanGreeting(text string) bool {
	return containsAny(strings.ToLower(text), greetingPhrases)
}

// IsHumanPresence reports whether text indicates a live person on the line:
// either an explicit greeting or any utterance longer than the length
// threshold.
func IsHumanPresence(text string) bool {
	if IsHumanGreeting(text) {
		return true
	}
	return utf8.RuneCountInString(strings.TrimSpace(text)) > humanLengthThreshold
}

// IVRAction is a resolved menu instruction: the digit to press and the
// category that justified pressing it.
type IVRAction struct {
	Digit    string
	Category MenuCategory
}

// FindIVRAction scans text for "press N" style instructions and returns the
// digit belonging to the highest-priority categorized option. An instruction
// is categorized when a category keyword appears within the preceding
// [categoryWindow] bytes. Instructions with no nearby category keyword are
// ignored. Ties between equal-priority options are broken by first
// occurrence. ok is false when no categorized instruction exists.
func FindIVRAction(text string) (action IVRAction, ok bool) {
	lower := strings.ToLower(text)

	best := 0 // 0 means nothing found; otherwise a categoryPriority value
	for _, m := range pressPattern.FindAllStringSubmatchIndex(lower, -1) {
		start := m[0]
		digit := lower[m[2]:m[3]]

		windowStart := start - categoryWindow
		if windowStart < 0 {
			windowStart = 0
		}
		before := lower[windowStart:start]

		cat, found := categorize(before)
		if !found {
			continue
		}
		if prio := categoryPriority[cat]; best == 0 || prio < best {
			best = prio
			action = IVRAction{Digit: digit, Category: cat}
		}
	}
	return action, best != 0
}

// categorize returns the highest-priority category whose keyword appears in s.
func categorize(s string) (MenuCategory, bool) {
	for _, cat := range []MenuCategory{CategoryPurchasing, CategorySales, CategoryOperator} {
		if containsAny(s, categoryKeywords[cat]) {
			return cat, true
		}
	}
	return "", false
}

func containsAny(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
