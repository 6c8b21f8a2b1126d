package statement

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

var (
	reBankNacion1   = regexp.MustCompile(`(?i)\bBCO\s+DE\s+LA\s+NACION\s+ARGENTINA\b`)
	reBankNacion2   = regexp.MustCompile(`(?i)\bBANCO\s+NACION\b`)
	reBankNacionFul = regexp.MustCompile(`(?i)\bBANCO\s+DE\s+LA\s+NACION\s+ARGENTINA\b`)
	reBankPatagonia = regexp.MustCompile(`(?i)\bBANCO\s+PATAGONIA\b`)
	reEntidadPag    = regexp.MustCompile(`(?i)Entidad\s+Pagadora\s*\n([A-Z0-9 .]+)`)

	reCardGeneric = regexp.MustCompile(`(?i)\bTARJETA\s+DE\s+(DEBITO|CR[EÉ]DITO)[^\n]{0,30}`)
	reCardOnly    = regexp.MustCompile(`(?i)^\s*TARJETA\s+DE\s+(?:DEBITO|CR[EÉ]DITO)(?:\s+.*)?\s*$`)

	reMonthYear = regexp.MustCompile(`(?i)\b(ENERO|FEBRERO|MARZO|ABRIL|MAYO|JUNIO|JULIO|AGOSTO|SEPTIEMBRE|SETIEMBRE|OCTUBRE|NOVIEMBRE|DICIEMBRE)\s+(\d{4})\b`)
	reDateSlash = regexp.MustCompile(`\b(\d{2}/\d{2}/\d{4})\b`)

	reFileDateSep = regexp.MustCompile(`(20\d{2})[-_/](\d{2})[-_/](\d{2})`)
	reFileDateRun = regexp.MustCompile(`(20\d{2})(\d{2})(\d{2})`)

	reSpaces = regexp.MustCompile(`\s+`)
)

var monthNumbers = map[string]time.Month{
	"ENERO":      time.January,
	"FEBRERO":    time.February,
	"MARZO":      time.March,
	"ABRIL":      time.April,
	"MAYO":       time.May,
	"JUNIO":      time.June,
	"JULIO":      time.July,
	"AGOSTO":     time.August,
	"SEPTIEMBRE": time.September,
	"SETIEMBRE":  time.September,
	"OCTUBRE":    time.October,
	"NOVIEMBRE":  time.November,
	"DICIEMBRE":  time.December,
}

// brandChecks is the card-brand priority order. Text wins over filename.
var brandChecks = []struct {
	re   *regexp.Regexp
	card string
}{
	{regexp.MustCompile(`(?i)\bCABAL\b`), "TARJETA CABAL"},
	{regexp.MustCompile(`(?i)\bAMEX\b|\bAMERICAN\s+EXPRESS\b`), "TARJETA AMEX"},
	{regexp.MustCompile(`(?i)\bMASTERCARD\b|\bMASTER\b`), "TARJETA MASTERCARD"},
	{regexp.MustCompile(`(?i)\bVISA\b`), "TARJETA VISA"},
	{regexp.MustCompile(`(?i)\bNARANJA\b`), "TARJETA NARANJA"},
}

func (t *Totals) detectBank(text string) {
	if !t.BankNacion && (reBankNacion1.MatchString(text) || reBankNacion2.MatchString(text)) {
		t.BankNacion = true
	}
	if !t.BankPatagonia && reBankPatagonia.MatchString(text) {
		t.BankPatagonia = true
	}

	if t.BankName == "" {
		if m := reEntidadPag.FindStringSubmatch(text); m != nil {
			t.BankName = strings.TrimSpace(m[1])
		} else if reBankNacionFul.MatchString(text) {
			t.BankName = "BANCO DE LA NACION ARGENTINA"
		}
	}
	if t.BankName == "" && t.BankPatagonia {
		t.BankName = "BANCO PATAGONIA S.A."
	}
}

func inferCardFromText(text string) string {
	for _, bc := range brandChecks {
		if bc.re.MatchString(text) {
			return bc.card
		}
	}
	return ""
}

func inferCardFromFilename(name string) string {
	n := strings.ToUpper(name)
	switch {
	case strings.Contains(n, "CABAL"):
		return "TARJETA CABAL"
	case strings.Contains(n, "AMEX"), strings.Contains(n, "AMERICAN"):
		return "TARJETA AMEX"
	case strings.Contains(n, "MASTERCARD"), strings.Contains(n, "MASTER"):
		return "TARJETA MASTERCARD"
	case strings.Contains(n, "VISA"):
		return "TARJETA VISA"
	case strings.Contains(n, "NARANJA"):
		return "TARJETA NARANJA"
	}
	return ""
}

func isGenericCardLabel(card string) bool {
	return card != "" && reCardOnly.MatchString(card)
}

func (t *Totals) detectCard(text, filename string) {
	brand := inferCardFromText(text)
	if brand == "" {
		brand = inferCardFromFilename(filename)
	}

	if t.CardName == "" {
		if m := reCardGeneric.FindString(text); m != "" {
			t.CardName = strings.TrimSpace(reSpaces.ReplaceAllString(m, " "))
		}
	}
	// A brand-specific name beats the generic "TARJETA DE CREDITO ..." label.
	if brand != "" && (t.CardName == "" || isGenericCardLabel(t.CardName)) {
		t.CardName = brand
	}
}

func (t *Totals) detectPeriod(text string) {
	if t.Period != "" {
		return
	}
	if m := reMonthYear.FindString(text); m != "" {
		t.Period = strings.TrimSpace(reSpaces.ReplaceAllString(strings.ToUpper(m), " "))
		return
	}
	if m := reDateSlash.FindStringSubmatch(text); m != nil {
		t.Period = m[1]
	}
}

// inferPeriodFromFilename recovers a period from yyyy-mm-dd or yyyymmdd
// shaped filename tokens, rendered as the last day of that month.
func inferPeriodFromFilename(name string) string {
	for _, re := range []*regexp.Regexp{reFileDateSep, reFileDateRun} {
		m := re.FindStringSubmatch(name)
		if m == nil {
			continue
		}
		var y, mo int
		fmt.Sscanf(m[1], "%d", &y)
		fmt.Sscanf(m[2], "%d", &mo)
		if mo >= 1 && mo <= 12 {
			return lastDayOfMonth(y, time.Month(mo))
		}
	}
	return ""
}

// lastDayOfMonth renders dd-mm-yyyy for the final calendar day of the month.
func lastDayOfMonth(year int, month time.Month) string {
	d := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	return fmt.Sprintf("%02d-%02d-%d", d.Day(), int(month), year)
}

// PeriodDate converts a detected period to its dd-mm-yyyy form: month+year
// phrases map to the last day of the month, dd/mm/yyyy dates keep their day.
func PeriodDate(period string) string {
	p := strings.TrimSpace(period)
	if p == "" {
		return ""
	}
	if reDateSlash.MatchString(p) && len(p) == 10 {
		return strings.ReplaceAll(p, "/", "-")
	}
	if m := regexp.MustCompile(`^(\d{1,2})[/-](\d{4})$`).FindStringSubmatch(p); m != nil {
		var mo, y int
		fmt.Sscanf(m[1], "%d", &mo)
		fmt.Sscanf(m[2], "%d", &y)
		if mo >= 1 && mo <= 12 {
			return lastDayOfMonth(y, time.Month(mo))
		}
	}
	if m := reMonthYear.FindStringSubmatch(p); m != nil {
		month, ok := monthNumbers[strings.ToUpper(m[1])]
		if ok {
			var y int
			fmt.Sscanf(m[2], "%d", &y)
			return lastDayOfMonth(y, month)
		}
	}
	return p
}
