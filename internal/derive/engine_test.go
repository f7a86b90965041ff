package derive_test

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/casefile/internal/derive"
	"github.com/go-ports/casefile/internal/models"
)

func intPtr(v int) *int { return &v }

func headOfHouseholdForm() *models.IntakeForm {
	return &models.IntakeForm{
		FirstName:          "Rosa",
		LastName:           "Diaz",
		DateOfBirth:        "1985-03-02",
		MaritalStatus:      models.Married,
		SpouseClientStatus: models.No,
		Spouse:             &models.Spouse{FirstName: "Tom", DOB: "1984-09-30", Income: "2,000"},
		HeadOfHousehold:    models.Yes,
		FamilySize:         "4",
		Dependent: []models.Dependent{
			{FirstName: "Ana", DOB: "2020-06-16", Income: "0", CalFreshAid: "120"},
			{FirstName: "Leo", DOB: "2015-01-10", SSIAid: "12a"},
		},
	}
}

func TestDerive_RefreshesEveryDerivedField(t *testing.T) {
	c := qt.New(t)

	res := newEngine().Derive(headOfHouseholdForm())
	c.Assert(res.Stable, qt.IsTrue)

	f := res.Form
	c.Assert(f.Age, qt.DeepEquals, intPtr(39))
	c.Assert(f.Spouse.Age, qt.DeepEquals, intPtr(39))
	c.Assert(f.Dependent[0].Age, qt.DeepEquals, intPtr(3))
	c.Assert(f.Dependent[1].Age, qt.DeepEquals, intPtr(9))
	c.Assert(f.Dependent[0].TotalIncome, qt.Equals, "120")
	c.Assert(f.Dependent[1].TotalIncome, qt.Equals, "0")
	c.Assert(f.FamilyMembersServiced, qt.Equals, "4")

	c.Assert(res.Warnings, qt.HasLen, 1)
	c.Assert(res.Warnings[0].Field, qt.Equals, "dependent[1].ssiAid")
	c.Assert(*res.Warnings[0].Dependent, qt.Equals, 1)
}

func TestDerive_DoesNotModifyInput(t *testing.T) {
	c := qt.New(t)

	in := headOfHouseholdForm()
	before := in.Clone()
	_ = newEngine().Derive(in)
	c.Assert(derive.Equal(in, before), qt.IsTrue)
}

func TestDerive_Idempotent(t *testing.T) {
	c := qt.New(t)

	e := newEngine()
	inputs := map[string]*models.IntakeForm{
		"head of household": headOfHouseholdForm(),
		"empty":             {},
		"linked spouse": {
			MaritalStatus:      models.Married,
			SpouseClientStatus: models.Yes,
			AssociatedSpouseID: "c-1",
			HeadOfHousehold:    models.No,
		},
		"bad numbers": {
			FamilySize:      "two",
			HeadOfHousehold: models.Yes,
			Income:          "lots",
			DateOfBirth:     "yesterday",
		},
	}

	for name, in := range inputs {
		c.Run(name, func(c *qt.C) {
			once := e.Derive(in)
			twice := e.Derive(once.Form)
			c.Assert(derive.Equal(once.Form, twice.Form), qt.IsTrue)
			c.Assert(twice.Changes, qt.HasLen, 0)
			c.Assert(twice.Warnings, qt.DeepEquals, once.Warnings)
			c.Assert(twice.Passes, qt.Equals, 1)
		})
	}
}

func TestDerive_LeavingMarriedClearsSpouseData(t *testing.T) {
	c := qt.New(t)

	for _, status := range []string{models.Single, models.Divorced, models.Widowed, models.Separated, models.Other, ""} {
		c.Run("status "+status, func(c *qt.C) {
			in := &models.IntakeForm{
				MaritalStatus:      status,
				SpouseClientStatus: models.Yes,
				AssociatedSpouseID: "c-9",
				Spouse:             &models.Spouse{FirstName: "Sam"},
			}
			res := newEngine(derive.WithMaxPasses(1)).Derive(in)
			c.Assert(res.Form.AssociatedSpouseID, qt.Equals, "")
			c.Assert(res.Form.Spouse, qt.IsNil)
		})
	}
}

func TestDerive_SpouseBecomesClientClearsFreeText(t *testing.T) {
	c := qt.New(t)

	in := &models.IntakeForm{
		MaritalStatus:      models.Married,
		SpouseClientStatus: models.Yes,
		Spouse:             &models.Spouse{FirstName: "Tom", LastName: "Diaz"},
	}
	res := newEngine(derive.WithMaxPasses(1)).Derive(in)
	c.Assert(res.Form.Spouse, qt.IsNil)
}

func TestDerive_SpouseNotClientClearsLink(t *testing.T) {
	c := qt.New(t)

	in := &models.IntakeForm{
		MaritalStatus:      models.Married,
		SpouseClientStatus: models.No,
		AssociatedSpouseID: "c-2",
		Spouse:             &models.Spouse{FirstName: "Tom"},
	}
	res := newEngine().Derive(in)
	c.Assert(res.Form.AssociatedSpouseID, qt.Equals, "")
	c.Assert(res.Form.Spouse.FirstName, qt.Equals, "Tom")
}

func TestDerive_NotHeadOfHouseholdClearsDependents(t *testing.T) {
	c := qt.New(t)

	in := headOfHouseholdForm()
	in.HeadOfHousehold = models.No
	res := newEngine().Derive(in)
	c.Assert(res.Form.Dependent, qt.HasLen, 0)
	c.Assert(res.Form.FamilyMembersServiced, qt.Equals, "2")
	c.Assert(res.Warnings, qt.HasLen, 0)
}

func TestDerive_FamilyPolicy(t *testing.T) {
	c := qt.New(t)

	c.Run("not head with client spouse", func(c *qt.C) {
		res := newEngine().Derive(&models.IntakeForm{
			MaritalStatus:      models.Married,
			SpouseClientStatus: models.Yes,
			HeadOfHousehold:    models.No,
			FamilySize:         "7",
		})
		c.Assert(res.Form.FamilyMembersServiced, qt.Equals, "1")
	})

	c.Run("head with client spouse", func(c *qt.C) {
		res := newEngine().Derive(&models.IntakeForm{
			MaritalStatus:      models.Married,
			SpouseClientStatus: models.Yes,
			HeadOfHousehold:    models.Yes,
			FamilySize:         "4",
		})
		c.Assert(res.Form.FamilyMembersServiced, qt.Equals, "3")
	})

	c.Run("blank family size", func(c *qt.C) {
		res := newEngine().Derive(&models.IntakeForm{HeadOfHousehold: models.Yes})
		c.Assert(res.Form.FamilyMembersServiced, qt.Equals, "1")
		c.Assert(res.Warnings, qt.HasLen, 0)
	})

	c.Run("invalid family size", func(c *qt.C) {
		res := newEngine().Derive(&models.IntakeForm{HeadOfHousehold: models.Yes, FamilySize: "a few"})
		c.Assert(res.Form.FamilyMembersServiced, qt.Equals, "1")
		c.Assert(res.Warnings, qt.DeepEquals, []models.Warning{{Field: "familySize", Message: derive.FamilySizeWarning}})
	})
}

func TestDerive_DateAndIncomeWarnings(t *testing.T) {
	c := qt.New(t)

	res := newEngine().Derive(&models.IntakeForm{
		DateOfBirth:        "2030-01-01",
		Income:             "12a",
		MaritalStatus:      models.Married,
		SpouseClientStatus: models.No,
		Spouse:             &models.Spouse{DOB: "nope", Income: "$40"},
	})

	fields := make([]string, 0, len(res.Warnings))
	for _, w := range res.Warnings {
		fields = append(fields, w.Field)
	}
	c.Assert(fields, qt.DeepEquals, []string{"dateOfBirth", "spouse.spouseDOB", "income", "spouse.spouseIncome"})
	c.Assert(res.Form.Age, qt.IsNil)
	c.Assert(res.Form.Spouse.Age, qt.IsNil)
	c.Assert(res.Warnings[3].Message, qt.Equals, `"$40" is not a valid income for Spouse Income`)
}

func TestDerive_ClearsStaleAge(t *testing.T) {
	c := qt.New(t)

	res := newEngine().Derive(&models.IntakeForm{Age: intPtr(40)})
	c.Assert(res.Form.Age, qt.IsNil)
}

func TestDerive_ChangesDescribePatch(t *testing.T) {
	c := qt.New(t)

	res := newEngine().Derive(&models.IntakeForm{HeadOfHousehold: models.Yes, FamilySize: "3"})
	c.Assert(res.Changes, qt.HasLen, 1)
	c.Assert(res.Changes[0].Op, qt.Equals, "add")
	c.Assert(res.Changes[0].Path, qt.Equals, "/familyMembersServiced")
	c.Assert(res.Changes[0].Value, qt.Equals, "3")
}

func TestDerive_WarningsNeverNil(t *testing.T) {
	c := qt.New(t)
	res := newEngine().Derive(nil)
	c.Assert(res.Warnings, qt.Not(qt.IsNil))
	c.Assert(res.Form, qt.Not(qt.IsNil))
}

func TestDerive_MaxPassesBound(t *testing.T) {
	c := qt.New(t)

	grow := derive.Step{
		Name: "grow",
		Apply: func(f *models.IntakeForm, _ time.Time) []models.Warning {
			f.Notes += "x"
			return nil
		},
	}
	res := newEngine(derive.WithSteps(grow), derive.WithMaxPasses(3)).Derive(&models.IntakeForm{})
	c.Assert(res.Stable, qt.IsFalse)
	c.Assert(res.Passes, qt.Equals, 3)
	c.Assert(res.Form.Notes, qt.Equals, "xxx")
}
