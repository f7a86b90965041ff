package models

import (
	"reflect"
	"strings"

	json "github.com/goccy/go-json"
)

// jsonKeys returns the set of JSON object keys declared by v's struct tags.
func jsonKeys(v any) map[string]bool {
	t := reflect.TypeOf(v)
	keys := make(map[string]bool, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		name, _, _ := strings.Cut(tag, ",")
		if name == "" || name == "-" {
			continue
		}
		keys[name] = true
	}
	return keys
}

// splitExtra returns the members of the JSON object data whose keys are not in
// known. It returns nil when there are none.
func splitExtra(data []byte, known map[string]bool) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	var extra map[string]json.RawMessage
	for k, v := range all {
		if known[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}
	return extra, nil
}

// joinExtra adds the extra members to the encoded object b. Keys already
// present in b or declared in known are left alone.
func joinExtra(b []byte, extra map[string]json.RawMessage, known map[string]bool) ([]byte, error) {
	if len(extra) == 0 {
		return b, nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(b, &obj); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if known[k] {
			continue
		}
		if _, ok := obj[k]; ok {
			continue
		}
		obj[k] = v
	}
	return json.Marshal(obj)
}
