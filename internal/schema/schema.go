// Package schema checks intake forms against their declared field constraints.
//
// Constraints live on the model structs as tags: `validate` holds per-field
// validity rules applied at every wizard step, `submit` holds the stricter
// required set applied before a client record is created. Unknown fields are
// never rejected.
package schema

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/go-ports/casefile/internal/derive"
	"github.com/go-ports/casefile/internal/models"
)

// Mode selects how strict Validate is.
type Mode int

const (
	// Partial checks only the validity of the values that are present.
	Partial Mode = iota
	// Full additionally enforces the fields required at submission.
	Full
)

// String returns "partial" or "full".
func (m Mode) String() string {
	if m == Full {
		return "full"
	}
	return "partial"
}

// ParseMode maps "full" to Full and anything else to Partial.
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), "full") {
		return Full
	}
	return Partial
}

// Result is the outcome of a validation run. Errors maps a JSON field path
// (e.g. "dependent[1].gender") to a single message.
type Result struct {
	OK     bool              `json:"ok"`
	Errors map[string]string `json:"errors,omitempty"`
}

var (
	fieldRules  = newValidator("validate")
	submitRules = newValidator("submit")
)

func newValidator(tag string) *validator.Validate {
	v := validator.New()
	v.SetTagName(tag)
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Registration only fails for empty tags or nil functions.
	_ = v.RegisterValidation("count", validateCount)
	_ = v.RegisterValidation("isodate", validateISODate)
	if tag == "submit" {
		v.RegisterStructValidation(submitStructRules, models.IntakeForm{})
	}
	return v
}

// Validate checks form in the given mode. A nil form is treated as empty.
func Validate(form *models.IntakeForm, mode Mode) Result {
	if form == nil {
		form = &models.IntakeForm{}
	}
	errs := make(map[string]string)
	collect(errs, fieldRules.Struct(form))
	if mode == Full {
		collect(errs, submitRules.Struct(form))
	}
	if len(errs) == 0 {
		return Result{OK: true}
	}
	return Result{OK: false, Errors: errs}
}

// collect converts validator errors into path → message entries. The first
// message recorded for a path wins.
func collect(dst map[string]string, err error) {
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		dst[""] = err.Error()
		return
	}
	for _, fe := range verrs {
		path := fieldPath(fe.Namespace())
		if _, ok := dst[path]; ok {
			continue
		}
		dst[path] = message(fe)
	}
}

// fieldPath strips the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "oneof":
		return "Must be one of: " + strings.ReplaceAll(fe.Param(), "'", "")
	case "count":
		return "Enter a non-negative number"
	case "isodate":
		return "Enter a date as YYYY-MM-DD"
	case "email":
		return "Enter a valid email address"
	case "max":
		return "Must be at most " + fe.Param() + " characters"
	case "spouselink":
		return "Link the spouse's client record"
	case "spousename":
		return "Enter the spouse's first name"
	case "familysize":
		return "Enter the family size"
	default:
		return "Invalid value"
	}
}

// ---------------------------------------------------------------------------
// Custom rules
// ---------------------------------------------------------------------------

// validateCount accepts free text that parses to a finite number >= 0.
func validateCount(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if strings.TrimSpace(s) == "" {
		return true
	}
	_, ok := derive.ParseCount(s)
	return ok
}

// validateISODate accepts the dates the derive engine computes ages from.
func validateISODate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, ok := derive.ParseDate(s)
	return ok
}

// submitStructRules enforces the cross-field requirements of a complete
// intake.
func submitStructRules(sl validator.StructLevel) {
	f, ok := sl.Current().Interface().(models.IntakeForm)
	if !ok {
		return
	}
	if f.MaritalStatus == models.Married {
		switch f.SpouseClientStatus {
		case models.Yes:
			if f.AssociatedSpouseID == "" {
				sl.ReportError(f.AssociatedSpouseID, "associatedSpouseID", "AssociatedSpouseID", "spouselink", "")
			}
		case models.No:
			if f.Spouse == nil || strings.TrimSpace(f.Spouse.FirstName) == "" {
				sl.ReportError("", "spouse.spouseFirstName", "Spouse.FirstName", "spousename", "")
			}
		default:
			sl.ReportError(f.SpouseClientStatus, "spouseClientStatus", "SpouseClientStatus", "required", "")
		}
	}
	if f.HeadOfHousehold == models.Yes && strings.TrimSpace(f.FamilySize) == "" {
		sl.ReportError(f.FamilySize, "familySize", "FamilySize", "familysize", "")
	}
}
