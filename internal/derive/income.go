package derive

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/shopspring/decimal"

	"github.com/go-ports/casefile/internal/models"
)

// ParseIncome parses a free-text amount. Thousands separators are stripped;
// the remainder must equal the text of the number it parses to, so "1,200"
// and "1200.5" are accepted while "12a", "1e3" or "1200.50" are not. Blank
// text is a valid zero.
func ParseIncome(s string) (float64, bool) {
	cleaned := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if cleaned == "" {
		return 0, true
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if strconv.FormatFloat(v, 'f', -1, 64) != cleaned {
		return 0, false
	}
	return v, true
}

// incomeWarning builds the advisory for an unparseable amount.
func incomeWarning(field, value, label string, dependent *int) models.Warning {
	return models.Warning{
		Field:     field,
		Dependent: dependent,
		Message:   fmt.Sprintf(`"%s" is not a valid income for %s`, value, label),
	}
}

// DependentIncome recomputes TotalIncome for every dependent. Unparseable
// fields contribute 0 and produce one warning each, tagged with the
// dependent's index. The returned slice is deps itself (and changed is
// false) when nothing differs, so callers can skip redundant updates.
func DependentIncome(deps []models.Dependent) (out []models.Dependent, warnings []models.Warning, changed bool) {
	if len(deps) == 0 {
		return deps, nil, false
	}
	out = make([]models.Dependent, len(deps))
	for i := range deps {
		d := deps[i].Clone()
		total := decimal.Zero
		for j, raw := range d.IncomeValues() {
			v, ok := ParseIncome(raw)
			if !ok {
				idx := i
				f := models.DependentIncomeFields[j]
				warnings = append(warnings, incomeWarning(
					fmt.Sprintf("dependent[%d].%s", i, f.Key), raw, f.Label, &idx,
				))
				continue
			}
			total = total.Add(decimal.NewFromFloat(v))
		}
		d.TotalIncome = total.String()
		out[i] = d
	}
	if cmp.Equal(deps, out, cmpopts.EquateEmpty()) {
		return deps, warnings, false
	}
	return out, warnings, true
}
