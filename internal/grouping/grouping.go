// Package grouping clusters purchase-invoice files that belong to the same
// voucher so multi-page scans travel through the reader as one unit. The key
// is derived from the filename alone: provider name plus date and voucher
// tokens. Anything without a recognizable key stays a singleton.
package grouping

import (
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/alfanetac/liqreader/internal/numtext"
)

// File is the slice of file metadata grouping needs.
type File struct {
	Path    string
	ModTime time.Time
}

func (f File) Name() string {
	return filepath.Base(f.Path)
}

// Group is one processing unit: either a multi-page voucher or a singleton.
type Group struct {
	Key     string
	Members []File
}

var (
	reDateToken = regexp.MustCompile(`\b(?:20\d{2}[-_.]\d{1,2}[-_.]\d{1,2}|\d{1,2}[-_.]\d{1,2}[-_.]20\d{2}|20\d{2}\d{2}\d{2})\b`)
	// A voucher is either the point-of-sale/number pair or a bare digit run.
	reVoucherPair = regexp.MustCompile(`\b\d{1,4}\s*-\s*\d{6,8}\b`)
	reVoucherRun  = regexp.MustCompile(`\b\d{8,14}\b`)

	rePunct = regexp.MustCompile(`[^A-Z0-9 ]+`)
)

var noiseWords = map[string]bool{
	"FAC": true, "FC": true, "NC": true, "ND": true,
	"FACTURA": true, "COMPROBANTE": true,
	"PAG": true, "PAGINA": true, "HOJA": true,
	"SCAN": true, "IMG": true,
}

// isNoise drops filler words, page counters (PAG2, HOJA03) and bare numbers.
func isNoise(word string) bool {
	trimmed := strings.TrimRight(word, "0123456789")
	return trimmed == "" || noiseWords[trimmed]
}

// key derives the (provider, date, voucher) grouping key for one filename.
// ok is false when the name yields no usable key and the file must stay a
// singleton.
func key(name string) (string, bool) {
	base := strings.TrimSuffix(name, filepath.Ext(name))
	norm := numtext.Normalize(base)

	dateTok := reDateToken.FindString(norm)
	rest := norm
	if dateTok != "" {
		rest = strings.Replace(rest, dateTok, " ", 1)
	}

	voucherTok := reVoucherPair.FindString(rest)
	if voucherTok == "" {
		voucherTok = reVoucherRun.FindString(rest)
	}
	if voucherTok == "" {
		return "", false
	}
	rest = strings.Replace(rest, voucherTok, " ", 1)

	rest = rePunct.ReplaceAllString(rest, " ")
	var kept []string
	for _, w := range strings.Fields(rest) {
		if isNoise(w) {
			continue
		}
		kept = append(kept, w)
	}
	provider := strings.Join(kept, " ")
	if len(provider) < 3 {
		return "", false
	}

	voucherTok = strings.ReplaceAll(voucherTok, " ", "")
	return provider + "|" + dateTok + "|" + voucherTok, true
}

// GroupFiles clusters files by voucher key. Members are ordered by
// modification time then name; the groups themselves sort by the first
// member's name so processing order is deterministic run to run.
func GroupFiles(files []File) []Group {
	byKey := make(map[string][]File)
	var order []string

	for _, f := range files {
		k, ok := key(f.Name())
		if !ok {
			k = "\x00" + f.Path // private singleton key
		}
		if _, seen := byKey[k]; !seen {
			order = append(order, k)
		}
		byKey[k] = append(byKey[k], f)
	}

	groups := make([]Group, 0, len(order))
	for _, k := range order {
		members := byKey[k]
		sort.Slice(members, func(i, j int) bool {
			if !members[i].ModTime.Equal(members[j].ModTime) {
				return members[i].ModTime.Before(members[j].ModTime)
			}
			return members[i].Name() < members[j].Name()
		})
		groups = append(groups, Group{Key: k, Members: members})
	}
	sort.Slice(groups, func(i, j int) bool {
		return groups[i].Members[0].Name() < groups[j].Members[0].Name()
	})
	return groups
}
