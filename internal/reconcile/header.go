package reconcile

import (
	"regexp"
	"strings"

	"github.com/alfanetac/liqreader/internal/statement"
)

var reHeaderSpaces = regexp.MustCompile(`\s+`)

// BuildHeader renders the five fixed header lines prepended to every ledger:
// bank, card, period date, a short booking concept, and the column header.
// Missing fields stay as empty lines so the line positions are stable for
// downstream importers.
func BuildHeader(tot *statement.Totals) string {
	bank := strings.TrimSpace(tot.BankName)
	card := strings.TrimSpace(tot.CardName)
	periodDate := statement.PeriodDate(tot.Period)

	bankShort := bank
	if strings.Contains(strings.ToUpper(bank), "BANCO DE LA NACION ARGENTINA") {
		bankShort = "BANCO NACION"
	}
	cardShort := strings.TrimSpace(strings.ReplaceAll(card, "TARJETA DE ", ""))
	if cardShort == "" {
		cardShort = card
	}

	concept := strings.TrimSpace("LIQ " + periodDate + " " + cardShort + " " + bankShort)
	concept = reHeaderSpaces.ReplaceAllString(concept, " ")
	if len(concept) > 50 {
		concept = strings.TrimRight(concept[:50], " ")
	}

	lines := []string{bank, card, periodDate, concept, "CONCEPTO|IMPORTE"}
	return strings.Join(lines, "\n") + "\n"
}
