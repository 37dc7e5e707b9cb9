package board

import (
	"strings"

	"github.com/gsPatrick/api-camilamoura/internal/models"
)

// countryCode is stripped from phones before the second match rule.
const countryCode = "55"

// MatchPhone picks the card that belongs to phone from search results.
//
// Rules are tried in order across all cards: the title contains the phone,
// the phone without its country code, or its last 8 digits. When no rule
// matches, the first search hit is accepted. A false match only adds a comment
// to the wrong card, while a miss creates a duplicate case.
func MatchPhone(phone string, cards []models.Ticket) *models.Ticket {
	if len(cards) == 0 {
		return nil
	}
	for _, needle := range phoneVariants(phone) {
		for i := range cards {
			if strings.Contains(cards[i].Name, needle) {
				return &cards[i]
			}
		}
	}
	return &cards[0]
}

func phoneVariants(phone string) []string {
	var out []string
	if phone != "" {
		out = append(out, phone)
	}
	if local := strings.TrimPrefix(phone, countryCode); local != phone && local != "" {
		out = append(out, local)
	}
	if len(phone) >= 8 {
		out = append(out, phone[len(phone)-8:])
	}
	return out
}
