// Package review derives the review state of a meter reading.
package review

import "github.com/smallbiznis/rentbook/internal/reading/domain"

// Resolve classifies a reading. Rules apply in order and the first match wins:
// no items or any item without a reading date is not finalized; otherwise any
// item with images makes it reviewed; otherwise it is not reviewed.
func Resolve(reading domain.MeterReading) domain.ReviewState {
	return ResolveItems(reading.Items)
}

func ResolveItems(items []domain.ReadingItem) domain.ReviewState {
	if len(items) == 0 {
		return domain.ReviewStateNotFinalized
	}
	for _, item := range items {
		if item.ReadingDate == nil {
			return domain.ReviewStateNotFinalized
		}
	}
	for _, item := range items {
		if len(item.Images) > 0 {
			return domain.ReviewStateReviewed
		}
	}
	return domain.ReviewStateNotReviewed
}
