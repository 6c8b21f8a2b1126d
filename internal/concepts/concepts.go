// Package concepts defines the eight canonical accounting categories and the
// ordered keyword classifier that maps free-text concept labels onto them.
// The downstream desktop consumer re-classifies lines from their label text
// alone, so every emitted label must carry its category keyword.
package concepts

import (
	"github.com/alfanetac/liqreader/internal/numtext"
)

// Category is one of the eight closed accounting buckets.
type Category int

const (
	Tarjeta Category = iota
	Banco
	Gasto
	IVACredito
	RetIVA
	RetIIBB
	RetGan
	Otros
)

// Categories returns every category in canonical output order.
func Categories() []Category {
	return []Category{Tarjeta, Banco, Gasto, IVACredito, RetIVA, RetIIBB, RetGan, Otros}
}

// String returns the canonical label used on output lines.
func (c Category) String() string {
	switch c {
	case Tarjeta:
		return "TARJETA"
	case Banco:
		return "BANCO"
	case Gasto:
		return "GASTO"
	case IVACredito:
		return "IVA_CREDITO"
	case RetIVA:
		return "RET_IVA"
	case RetIIBB:
		return "RET_IIBB"
	case RetGan:
		return "RET_GAN"
	default:
		return "OTROS"
	}
}

// Keyword returns the token the downstream consumer keys on for this
// category. EnsureKeyword guarantees it appears in emitted labels.
func (c Category) Keyword() string {
	switch c {
	case Tarjeta:
		return "TARJETA"
	case Banco:
		return "BANCO"
	case Gasto:
		return "GASTO"
	case IVACredito:
		return "IVA CREDITO"
	case RetIVA:
		return "IVA RET"
	case RetIIBB:
		return "IIBB"
	case RetGan:
		return "GANANCIAS"
	default:
		return "OTROS"
	}
}

// EnsureKeyword prepends the category keyword when the normalized label does
// not already contain it.
func EnsureKeyword(label string, cat Category) string {
	kw := cat.Keyword()
	if contains(numtext.Normalize(label), kw) {
		return label
	}
	if label == "" {
		return kw
	}
	return kw + " - " + label
}

// NormalizeAmount applies the sign convention: the presented total (TARJETA)
// is non-negative, everything else non-positive. The OTROS residual is signed
// by the reconciler, not here.
func NormalizeAmount(v float64, cat Category) float64 {
	if cat == Tarjeta {
		v = abs(v)
	} else {
		v = -abs(v)
	}
	return numtext.Round2(v)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
