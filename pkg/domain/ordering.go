package domain

import "strings"

// CompareByBirth orders persons by birth date with undated persons last, then
// by name and finally by id so the order is total.
func CompareByBirth(a, b Person) int {
	switch {
	case a.BirthDate != nil && b.BirthDate == nil:
		return -1
	case a.BirthDate == nil && b.BirthDate != nil:
		return 1
	case a.BirthDate != nil && b.BirthDate != nil && !a.BirthDate.Equal(*b.BirthDate):
		if a.BirthDate.Before(*b.BirthDate) {
			return -1
		}
		return 1
	}
	if c := strings.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return strings.Compare(a.ID, b.ID)
}
