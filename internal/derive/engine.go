// Package derive recomputes the derived fields of an intake form.
//
// Derivation is an explicit, ordered pipeline of pure steps run over a copy of
// the form until a pass changes nothing. It performs no I/O and never fails:
// malformed input is reported as warnings.
package derive

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/go-ports/casefile/internal/jsonpatch"
	"github.com/go-ports/casefile/internal/models"
	"github.com/go-ports/casefile/internal/spouse"
)

// DefaultMaxPasses bounds the fixed-point loop. The default pipeline settles
// in at most two passes.
const DefaultMaxPasses = 8

// DateWarning is the advisory for a malformed or future date of birth.
const DateWarning = "Enter a valid date of birth"

// Step is one pure transformation of the pipeline. It mutates form in place
// and returns the warnings it found on its inputs.
type Step struct {
	Name  string
	Apply func(form *models.IntakeForm, now time.Time) []models.Warning
}

// Steps is the default pipeline, in execution order.
var Steps = []Step{
	{"spouse", stepSpouse},
	{"dependents", stepDependents},
	{"ages", stepAges},
	{"income", stepIncome},
	{"familyMembersServiced", stepFamily},
}

// Result is the outcome of one Derive call.
type Result struct {
	Form     *models.IntakeForm `json:"form"`
	Warnings []models.Warning   `json:"warnings"`
	Passes   int                `json:"passes"`
	Stable   bool               `json:"stable"`
	Changes  []jsonpatch.Op     `json:"changes,omitempty"`
}

// Engine runs the derivation pipeline.
type Engine struct {
	now       func() time.Time
	maxPasses int
	steps     []Step
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the time source used for age computation.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMaxPasses bounds the number of pipeline passes. Values < 1 are ignored.
func WithMaxPasses(n int) Option {
	return func(e *Engine) {
		if n >= 1 {
			e.maxPasses = n
		}
	}
}

// WithSteps replaces the pipeline.
func WithSteps(steps ...Step) Option {
	return func(e *Engine) { e.steps = steps }
}

// New returns an Engine with the default pipeline.
func New(opts ...Option) *Engine {
	e := &Engine{now: time.Now, maxPasses: DefaultMaxPasses, steps: Steps}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Derive returns a copy of form with every derived field refreshed. form
// itself is not modified. Warnings come from the final pass, so they describe
// the returned form.
func (e *Engine) Derive(form *models.IntakeForm) Result {
	now := e.now()
	cur := form.Clone()
	res := Result{Warnings: make([]models.Warning, 0)}

	for pass := 1; pass <= e.maxPasses; pass++ {
		next := cur.Clone()
		warnings := make([]models.Warning, 0)
		for _, st := range e.steps {
			warnings = append(warnings, st.Apply(next, now)...)
		}
		res.Passes = pass
		res.Warnings = warnings
		stable := Equal(cur, next)
		cur = next
		if stable {
			res.Stable = true
			break
		}
	}
	if !res.Stable {
		slog.Warn("derive: no fixed point", "passes", res.Passes)
	}

	res.Form = cur
	changes, err := jsonpatch.Docs(form.Clone(), cur)
	if err != nil {
		slog.Debug("derive: diff skipped", "err", err)
	}
	res.Changes = changes
	return res
}

// Equal reports whether two forms hold the same values. Nil and empty slices
// and maps compare equal.
func Equal(a, b *models.IntakeForm) bool {
	return cmp.Equal(a, b, cmpopts.EquateEmpty())
}

// ---------------------------------------------------------------------------
// Pipeline steps
// ---------------------------------------------------------------------------

func stepSpouse(form *models.IntakeForm, _ time.Time) []models.Warning {
	spouse.Resolve(form)
	return nil
}

// stepDependents drops dependents unless the client heads the household.
func stepDependents(form *models.IntakeForm, _ time.Time) []models.Warning {
	if form.HeadOfHousehold != models.Yes && len(form.Dependent) > 0 {
		form.Dependent = nil
	}
	return nil
}

func stepAges(form *models.IntakeForm, now time.Time) []models.Warning {
	var warnings []models.Warning

	age, ok := Age(form.DateOfBirth, now)
	if !ok {
		warnings = append(warnings, models.Warning{Field: "dateOfBirth", Message: DateWarning})
	}
	setAge(&form.Age, age)

	if form.Spouse != nil {
		age, ok := Age(form.Spouse.DOB, now)
		if !ok {
			warnings = append(warnings, models.Warning{Field: "spouse.spouseDOB", Message: DateWarning})
		}
		setAge(&form.Spouse.Age, age)
	}

	for i := range form.Dependent {
		d := &form.Dependent[i]
		age, ok := Age(d.DOB, now)
		if !ok {
			idx := i
			warnings = append(warnings, models.Warning{
				Field:     fmt.Sprintf("dependent[%d].dob", i),
				Dependent: &idx,
				Message:   DateWarning,
			})
		}
		setAge(&d.Age, age)
	}
	return warnings
}

func stepIncome(form *models.IntakeForm, _ time.Time) []models.Warning {
	var warnings []models.Warning
	if _, ok := ParseIncome(form.Income); !ok {
		warnings = append(warnings, incomeWarning("income", form.Income, "Income", nil))
	}
	if form.Spouse != nil {
		if _, ok := ParseIncome(form.Spouse.Income); !ok {
			warnings = append(warnings, incomeWarning("spouse.spouseIncome", form.Spouse.Income, "Spouse Income", nil))
		}
	}

	deps, depWarnings, changed := DependentIncome(form.Dependent)
	if changed {
		form.Dependent = deps
	}
	return append(warnings, depWarnings...)
}

func stepFamily(form *models.IntakeForm, _ time.Time) []models.Warning {
	n, warn := FamilyMembersServiced(form.FamilySize, form.HeadOfHousehold, form.SpouseClientStatus)
	form.FamilyMembersServiced = n
	if warn != nil {
		return []models.Warning{*warn}
	}
	return nil
}
