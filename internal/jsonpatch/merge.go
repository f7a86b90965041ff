package jsonpatch

import (
	"errors"
	"fmt"

	mergepatch "github.com/evanphx/json-patch/v5"
	json "github.com/goccy/go-json"
)

// ErrNotObject is returned when a merge patch is not a JSON object.
var ErrNotObject = errors.New("merge patch must be a JSON object")

// MergePatch applies an RFC 7386 merge patch to doc and returns the result.
// Objects merge recursively, null removes a member, and every other value
// (arrays included) replaces the target. An empty doc is treated as {}.
func MergePatch(doc, patch []byte) ([]byte, error) {
	var p any
	if err := json.Unmarshal(patch, &p); err != nil {
		return nil, fmt.Errorf("jsonpatch.MergePatch: decode patch: %w", err)
	}
	if _, ok := p.(map[string]any); !ok {
		return nil, ErrNotObject
	}
	if len(doc) == 0 {
		doc = []byte("{}")
	} else if !json.Valid(doc) {
		return nil, errors.New("jsonpatch.MergePatch: decode doc: invalid JSON")
	}

	out, err := mergepatch.MergePatch(doc, patch)
	if err != nil {
		return nil, fmt.Errorf("jsonpatch.MergePatch: %w", err)
	}
	return out, nil
}
