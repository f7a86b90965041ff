package intakecmd

import (
	"strings"
	"testing"

	qt "github.com/frankban/quicktest"
	"github.com/spf13/cobra"

	"github.com/go-ports/casefile/internal/checkers"
)

func TestApplySets(t *testing.T) {
	c := qt.New(t)

	doc := map[string]any{"lastName": "Lopez"}
	err := applySets(doc, []string{
		"firstName=Ana",
		"spouse.spouseFirstName=Luis",
		"spouse.spouseIncome=1,200",
		"notes=",
		"email=a=b@example.org",
	})
	c.Assert(err, qt.IsNil)
	c.Assert(doc, qt.DeepEquals, map[string]any{
		"lastName":  "Lopez",
		"firstName": "Ana",
		"spouse": map[string]any{
			"spouseFirstName": "Luis",
			"spouseIncome":    "1,200",
		},
		"notes": nil,
		"email": "a=b@example.org",
	})

	c.Assert(applySets(doc, []string{"novalue"}), qt.ErrorMatches, `--set "novalue": want key=value`)
	c.Assert(applySets(doc, []string{"=x"}), qt.IsNotNil)
}

func TestBuildPatch(t *testing.T) {
	c := qt.New(t)

	cmd := &cobra.Command{}
	cmd.SetIn(strings.NewReader(`{"housingStatus":"Shelter","firstName":"Old"}`))

	got, err := buildPatch(cmd, `{"lastName":"Lopez"}`, "-", []string{"firstName=Ana"})
	c.Assert(err, qt.IsNil)
	c.Assert(got, checkers.JSONPathEquals("$.firstName"), "Ana")
	c.Assert(got, checkers.JSONPathEquals("$.lastName"), "Lopez")
	c.Assert(got, checkers.JSONPathEquals("$.housingStatus"), "Shelter")

	_, err = buildPatch(&cobra.Command{}, "", "", nil)
	c.Assert(err, qt.ErrorMatches, "nothing to update: .*")

	_, err = buildPatch(&cobra.Command{}, "[1]", "", nil)
	c.Assert(err, qt.ErrorMatches, "--patch: .*")
}
