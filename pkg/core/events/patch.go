package events

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
)

// ApplyPatch applies ops to the JSON document doc and returns the patched
// document. The operations are all-or-nothing: on error doc is untouched and
// no partial result is returned. A nil or empty doc is treated as {}.
func ApplyPatch(doc []byte, ops []JSONPatchOperation) ([]byte, error) {
	if len(doc) == 0 || string(doc) == "null" {
		doc = []byte("{}")
	}
	if len(ops) == 0 {
		return doc, nil
	}
	raw, err := json.Marshal(ops)
	if err != nil {
		return nil, fmt.Errorf("failed to encode patch: %w", err)
	}
	patch, err := jsonpatch.DecodePatch(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode patch: %w", err)
	}
	out, err := patch.Apply(doc)
	if err != nil {
		return nil, err
	}
	return out, nil
}
