package triage

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/gsPatrick/api-camilamoura/internal/config"
	"github.com/gsPatrick/api-camilamoura/internal/models"
	"github.com/gsPatrick/api-camilamoura/internal/util"
)

func fold(s string) string {
	return util.Fold(s)
}

// canonicalCategory maps the oracle's category to a configured name, or OUTROS.
func canonicalCategory(raw string, categories []config.Category) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.CategoryOther
	}
	key := fold(raw)
	for _, c := range categories {
		if fold(c.Name) == key {
			return c.Name
		}
	}
	return models.CategoryOther
}

func normalizeUrgency(raw string) string {
	if fold(strings.TrimSpace(raw)) == fold(models.UrgencyHigh) {
		return models.UrgencyHigh
	}
	return models.UrgencyNormal
}

func normalizeCloseReason(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case models.CloseReasonHasLawyer:
		return models.CloseReasonHasLawyer
	case models.CloseReasonOutsideArea:
		return models.CloseReasonOutsideArea
	case "", "null", "none":
		return ""
	}
	return strings.TrimSpace(raw)
}

// cleanNullable drops the placeholder values models emit for unknown names.
func cleanNullable(raw string) string {
	raw = strings.TrimSpace(raw)
	switch strings.ToLower(raw) {
	case "", "null", "nome ou null", "não informado", "nao informado":
		return ""
	}
	return cases.Title(language.BrazilianPortuguese).String(raw)
}

// stripCodeFence removes a ```json fence some models wrap around JSON output.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
