// Package extract pulls structured contact fields out of finalized transcript
// lines: email addresses, phone numbers, names and company affiliations.
//
// Extraction runs on every line independently of call state. All functions
// are pure; stickiness (first match wins) is enforced by the caller that owns
// the captured-data map.
package extract

import (
	"regexp"
	"strings"
)

// Field names under which captured values are stored.
const (
	FieldEmail   = "email"
	FieldPhone   = "phone"
	FieldName    = "name"
	FieldCompany = "company"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

	// phonePattern matches Mexican numbering-plan digit runs: an optional
	// +52 country prefix followed by at least ten digits possibly broken up
	// by spaces, dots or dashes, as people dictate numbers aloud.
	phonePattern = regexp.MustCompile(`(?:\+?52[\s.-]*)?(?:\d[\s.-]*){10,}`)

	nonDigit = regexp.MustCompile(`\D`)

	// namePattern matches explicit self-introductions. The captured group is
	// one or two capitalized words following the introduction phrase.
	namePattern = regexp.MustCompile(`(?:[Mm]e llamo|[Mm]i nombre es|[Ll]e saluda|[Hh]abla con)\s+([A-ZÁÉÍÓÚÑ][a-záéíóúñ]+(?:\s+[A-ZÁÉÍÓÚÑ][a-záéíóúñ]+)?)`)

	// companyPattern matches explicit affiliation statements. The company
	// itself must start with an uppercase letter or digit so that filler words
	// after the phrase ("le llamo de la empresa …") are not captured.
	companyPattern = regexp.MustCompile(`(?:[Dd]e la empresa|[Dd]e la compañía|[Tt]rabajo en|[Ll]e llamo de)\s+([A-ZÁÉÍÓÚÑ0-9][\wÁÉÍÓÚÑáéíóúñ&.-]*(?:\s+[A-ZÁÉÍÓÚÑ][\wÁÉÍÓÚÑáéíóúñ&.-]*)*)`)
)

// Email returns the first email address in text, or "" when none is found.
func Email(text string) string {
	return emailPattern.FindString(text)
}

// Phone returns the first phone number in text normalized to digits only
// (country prefix included when spoken), or "" when none is found.
func Phone(text string) string {
	m := phonePattern.FindString(text)
	if m == "" {
		return ""
	}
	return nonDigit.ReplaceAllString(m, "")
}

// Name returns the speaker's name from an explicit self-introduction
// ("me llamo X", "mi nombre es X"), or "" when the line contains none.
func Name(text string) string {
	m := namePattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// Company returns the company from an explicit affiliation statement
// ("de la empresa X", "trabajo en X"), or "" when the line contains none.
func Company(text string) string {
	m := companyPattern.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(strings.Trim(m[1], ".,"))
}

// All runs every extractor over text and returns the non-empty results keyed
// by field name. The map is nil when nothing was extracted.
func All(text string) map[string]string {
	var out map[string]string
	set := func(field, value string) {
		if value == "" {
			return
		}
		if out == nil {
			out = make(map[string]string, 4)
		}
		out[field] = value
	}
	set(FieldEmail, Email(text))
	set(FieldPhone, Phone(text))
	set(FieldName, Name(text))
	set(FieldCompany, Company(text))
	return out
}
