package model

import "slices"

// PendingReviewItemLimit is the NFe line-item count from which a document is
// considered checked automatically and leaves the manual review queue.
const PendingReviewItemLimit = 4

// Filter selects stored documents. Zero values disable each criterion.
type Filter struct {
	Status Status
	Types  []DocumentType
	// NFeItemsBelow keeps NFe documents only when they carry fewer line items
	// than this value. Other variants are not affected.
	NFeItemsBelow int
}

// PendingReviewFilter selects captured NFSe documents and captured NFe
// documents with fewer than PendingReviewItemLimit items.
func PendingReviewFilter() Filter {
	return Filter{
		Status:        StatusCapturado,
		NFeItemsBelow: PendingReviewItemLimit,
	}
}

// Match evaluates the filter against a single document.
func (f Filter) Match(d *Document) bool {
	if d == nil {
		return false
	}
	if f.Status != "" && d.Status != f.Status {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, d.Tipo) {
		return false
	}
	if f.NFeItemsBelow > 0 && d.Tipo == TypeNFe && d.ItemCount() >= f.NFeItemsBelow {
		return false
	}
	return true
}

// CountByType tallies documents per variant; only variants present appear.
func CountByType(docs []*Document) map[DocumentType]int {
	counts := make(map[DocumentType]int)
	for _, d := range docs {
		counts[d.Tipo]++
	}
	return counts
}
