package tracedb

import (
	"fmt"

	"github.com/roach88/substate/internal/path"
	"github.com/roach88/substate/internal/value"
)

// marshalChanges stores change-paths as a canonical JSON array of their
// textual forms.
func marshalChanges(changes []path.Path) (string, error) {
	arr := make(value.Array, len(changes))
	for i, p := range changes {
		arr[i] = value.String(p.String())
	}
	data, err := value.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal changes: %w", err)
	}
	return string(data), nil
}

func unmarshalChanges(data string) ([]path.Path, error) {
	v, err := value.Unmarshal([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal changes: %w", err)
	}
	arr, ok := v.(value.Array)
	if !ok {
		return nil, fmt.Errorf("unmarshal changes: expected array, got %s", value.Kind(v))
	}
	out := make([]path.Path, len(arr))
	for i, elem := range arr {
		s, ok := elem.(value.String)
		if !ok {
			return nil, fmt.Errorf("unmarshal changes[%d]: expected string, got %s", i, value.Kind(elem))
		}
		p, err := path.Parse(string(s))
		if err != nil {
			return nil, fmt.Errorf("unmarshal changes[%d]: %w", i, err)
		}
		out[i] = p
	}
	return out, nil
}

// marshalSnapshot returns the canonical JSON and digest of a snapshot. An
// absent root is stored as null.
func marshalSnapshot(v value.Value) (data, digest string, err error) {
	if v == nil {
		v = value.Null{}
	}
	raw, err := value.MarshalCanonical(v)
	if err != nil {
		return "", "", fmt.Errorf("marshal snapshot: %w", err)
	}
	digest, err = value.Digest(v)
	if err != nil {
		return "", "", fmt.Errorf("digest snapshot: %w", err)
	}
	return string(raw), digest, nil
}

func unmarshalSnapshot(data string) (value.Value, error) {
	v, err := value.Unmarshal([]byte(data))
	if err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return v, nil
}
