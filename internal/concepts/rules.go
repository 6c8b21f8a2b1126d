package concepts

import (
	"strings"

	"github.com/alfanetac/liqreader/internal/numtext"
)

// rule pairs a predicate over the normalized label with the category it
// assigns. Rules are evaluated strictly in order and the first match wins;
// the ordering is the tie-break policy, so keep it stable. In particular the
// "IVA + arancel/comision/gasto" composite must resolve to IVA_CREDITO before
// the generic retention tests see the IVA token.
type rule struct {
	match func(t string) bool
	cat   Category
}

func contains(t, sub string) bool { return strings.Contains(t, sub) }

func containsAny(t string, subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(t, s) {
			return true
		}
	}
	return false
}

var rules = []rule{
	{func(t string) bool { return contains(t, "RET_GAN") }, RetGan},
	{func(t string) bool { return contains(t, "RET_IIBB") }, RetIIBB},
	{func(t string) bool { return contains(t, "RET_IVA") }, RetIVA},
	{func(t string) bool { return contains(t, "IVA_CREDITO") }, IVACredito},
	{func(t string) bool { return contains(t, "BANCO") }, Banco},
	{func(t string) bool {
		return containsAny(t, "ACREDITADO", "LIQUIDADO", "NETO DE PAGOS", "NETO A COBRAR", "A DEPOSITAR")
	}, Banco},
	{func(t string) bool { return containsAny(t, "ARANCEL", "COMISION", "CARGO") }, Gasto},
	{func(t string) bool {
		return contains(t, "IMPUESTO") &&
			!containsAny(t, "IVA", "GANANCIAS", "IIBB", "INGRESOS")
	}, Gasto},
	{func(t string) bool {
		return containsAny(t, "GASTO", "COMISION") && !containsAny(t, "IVA", "CREDITO")
	}, Gasto},
	{func(t string) bool {
		return contains(t, "IVA") && containsAny(t, "ARANCEL", "COMISION", "GASTO")
	}, IVACredito},
	{func(t string) bool {
		return (contains(t, "IVA") && containsAny(t, "RET", "PERCEP")) ||
			containsAny(t, "R.G. 2408", "RG 2408")
	}, RetIVA},
	{func(t string) bool {
		return containsAny(t, "INGRESOS", "IIBB", "SIRTAC", "ING.BRUTOS", "ING. BRUTOS", "ING BRUTOS")
	}, RetIIBB},
	{func(t string) bool {
		return contains(t, "GANANCIAS") ||
			(contains(t, "RET") && contains(t, "GAN")) ||
			contains(t, "RG 830")
	}, RetGan},
	{func(t string) bool {
		return (contains(t, "IVA") && contains(t, "CREDITO")) ||
			containsAny(t, "CRED.FISC", "CRED FISC") ||
			(contains(t, "IVA") && contains(t, "CRED") && contains(t, "FISC"))
	}, IVACredito},
	{func(t string) bool { return contains(t, "TARJETA") && !contains(t, "IVA") }, Tarjeta},
}

// Classify maps a free-text concept label to its canonical category.
// Unmatched labels land in OTROS.
func Classify(label string) Category {
	t := numtext.Normalize(label)
	for _, r := range rules {
		if r.match(t) {
			return r.cat
		}
	}
	return Otros
}
