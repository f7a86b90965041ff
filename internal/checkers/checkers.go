// Package checkers provides quicktest checkers shared by the test suites.
package checkers

import (
	"fmt"

	qt "github.com/frankban/quicktest"
	json "github.com/goccy/go-json"
	"github.com/yalp/jsonpath"
)

// JSONPathEquals returns a checker that decodes the obtained JSON document
// (a string or []byte), selects the value at path and compares it with the
// expected value using qt.DeepEquals. JSON numbers decode as float64.
//
//	c.Assert(body, checkers.JSONPathEquals("$.form.familyMembersServiced"), "3")
func JSONPathEquals(path string) qt.Checker {
	return &jsonPathChecker{path: path}
}

type jsonPathChecker struct {
	path string
}

func (c *jsonPathChecker) ArgNames() []string {
	return []string{"got", "want"}
}

func (c *jsonPathChecker) Check(got any, args []any, note func(key string, value any)) error {
	var raw []byte
	switch v := got.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return qt.BadCheckf("first argument is not a JSON string or []byte: %T", got)
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("cannot decode JSON: %w", err)
	}
	val, err := jsonpath.Read(doc, c.path)
	if err != nil {
		note("path", c.path)
		return fmt.Errorf("cannot read path: %w", err)
	}
	note("value at "+c.path, val)
	return qt.DeepEquals.Check(val, args, note)
}
