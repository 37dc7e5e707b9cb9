package flow

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/gsPatrick/api-camilamoura/internal/util"
)

const maxNameRunes = 100

// introPattern matches a leading self-introduction. "meu nome é" and
// "me chamo" accept any casing of the name; the bare "sou" forms require a
// capitalized name so "sou aposentado" is not taken as one.
var introPattern = regexp.MustCompile(`^\s*(?:(?i:meu nome (?:é|e)|me chamo|chamo-me)\s+(\p{L}+(?:\s+\p{L}+){0,4})|(?i:eu sou|sou)\s+(\p{Lu}\p{L}*(?:\s+\p{L}+){0,4}))`)

// nameStopWords end a name captured from free text.
var nameStopWords = map[string]bool{
	"e": true, "tenho": true, "estou": true, "preciso": true, "moro": true,
	"fui": true, "trabalho": true, "gostaria": true, "quero": true, "com": true,
	"sou": true, "aqui": true, "tudo": true, "bem": true, "meu": true, "minha": true,
}

// cleanName keeps letters and single spaces, bounds the length and title-cases the result.
func cleanName(raw string) string {
	letters := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, raw)
	name := strings.Join(strings.Fields(letters), " ")
	if r := []rune(name); len(r) > maxNameRunes {
		name = strings.TrimSpace(string(r[:maxNameRunes]))
	}
	if name == "" {
		return ""
	}
	return cases.Title(language.BrazilianPortuguese).String(name)
}

// extractIntroName returns the name from a "meu nome é ..." style opening, or "".
func extractIntroName(msg string) string {
	m := introPattern.FindStringSubmatch(msg)
	if m == nil {
		return ""
	}
	captured := m[1]
	if captured == "" {
		captured = m[2]
	}
	var words []string
	for _, w := range strings.Fields(captured) {
		if nameStopWords[strings.ToLower(w)] {
			break
		}
		words = append(words, w)
	}
	return cleanName(strings.Join(words, " "))
}

func isNameVariable(variable string) bool {
	v := fold(strings.TrimSpace(variable))
	return v == "nome" || v == "name"
}

func fold(s string) string {
	return util.Fold(s)
}
