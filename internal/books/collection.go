package books

import "sort"

// SortOrder selects the direction of a rating sort.
type SortOrder string

const (
	// SortNone leaves the list in service order.
	SortNone SortOrder = ""
	// SortHigh puts the highest ratings first.
	SortHigh SortOrder = "high"
	// SortLow puts the lowest ratings first.
	SortLow SortOrder = "low"
)

// ParseSortOrder maps user input onto a SortOrder; unknown values map to SortNone.
func ParseSortOrder(value string) SortOrder {
	switch SortOrder(value) {
	case SortHigh:
		return SortHigh
	case SortLow:
		return SortLow
	default:
		return SortNone
	}
}

// SortByRating returns a copy of list ordered by rating. The sort is stable,
// so equal ratings keep their prior relative order.
func SortByRating(list []Book, order SortOrder) []Book {
	sorted := append([]Book(nil), list...)
	switch order {
	case SortHigh:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Rating > sorted[j].Rating
		})
	case SortLow:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Rating < sorted[j].Rating
		})
	}
	return sorted
}

// OwnedBy returns the records whose owner email equals email. An empty email owns nothing.
func OwnedBy(list []Book, email string) []Book {
	owned := make([]Book, 0, len(list))
	if email == "" {
		return owned
	}
	for _, book := range list {
		if book.OwnerEmail == email {
			owned = append(owned, book)
		}
	}
	return owned
}

// Latest returns the last n records of list, newest first.
func Latest(list []Book, n int) []Book {
	if n <= 0 {
		return []Book{}
	}
	start := len(list) - n
	if start < 0 {
		start = 0
	}
	latest := make([]Book, 0, len(list)-start)
	for i := len(list) - 1; i >= start; i-- {
		latest = append(latest, list[i])
	}
	return latest
}

// Find returns the record with the given id.
func Find(list []Book, id string) (Book, bool) {
	for _, book := range list {
		if book.ID == id {
			return book, true
		}
	}
	return Book{}, false
}
