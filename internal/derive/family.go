package derive

import (
	"math"
	"strconv"
	"strings"

	"github.com/go-ports/casefile/internal/models"
)

// FamilySizeWarning is the advisory for a family size that is not a
// non-negative number.
const FamilySizeWarning = "Enter a valid family size"

// FamilyMembersServiced returns how many people this client's case services.
//
// The mapping is program policy and is kept exactly as specified:
//
//	not head of household: "1" if the spouse is also a client, else "2"
//	family size 1:         "1"
//	spouse is a client:    size - 1 (the spouse is counted on their own case)
//	otherwise:             size
//
// A blank size counts as 1 silently; an invalid one counts as 1 and returns
// a warning.
func FamilyMembersServiced(familySize, headOfHousehold, spouseClientStatus string) (string, *models.Warning) {
	count, warn := familyCount(familySize)

	switch {
	case headOfHousehold == models.No:
		if spouseClientStatus == models.Yes {
			return "1", warn
		}
		return "2", warn
	case count == 1:
		return "1", warn
	case spouseClientStatus == models.Yes:
		return formatCount(count - 1), warn
	default:
		return formatCount(count), warn
	}
}

// ParseCount parses a free-text count such as a family size. It accepts any
// finite number >= 0 after trimming spaces. Blank text is not a count.
func ParseCount(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) || n < 0 {
		return 0, false
	}
	return n, true
}

func familyCount(s string) (float64, *models.Warning) {
	if strings.TrimSpace(s) == "" {
		return 1, nil
	}
	n, ok := ParseCount(s)
	if !ok {
		return 1, &models.Warning{Field: "familySize", Message: FamilySizeWarning}
	}
	return n, nil
}

func formatCount(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
