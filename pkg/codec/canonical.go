// Copyright 2025 Trustless Voting System
//
// Canonical JSON framing, generalized from the validator's commitment
// package (RFC8785-like deterministic key ordering) so that anchor payloads
// and Feldman commitment hashes are byte-identical across independent
// builds given identical inputs (§6 Canonical payload formats, §8 property 6).

package codec

import (
	"encoding/hex"
	"encoding/json"
	"sort"
)

// CanonicalizeJSON takes arbitrary JSON bytes and returns a canonical
// encoding with deterministically sorted object keys. Arrays retain order,
// since ordering is semantically meaningful (e.g. candidate lists,
// Feldman commitment vectors).
func CanonicalizeJSON(raw []byte) ([]byte, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(canonicalizeValue(v))
}

func canonicalizeValue(v interface{}) interface{} {
	switch vv := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make(map[string]interface{}, len(vv))
		for _, k := range keys {
			ordered[k] = canonicalizeValue(vv[k])
		}
		return ordered
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, e := range vv {
			out[i] = canonicalizeValue(e)
		}
		return out
	default:
		return vv
	}
}

// MarshalCanonical marshals v to JSON and then canonicalizes the result.
func MarshalCanonical(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return CanonicalizeJSON(raw)
}

// HashCanonical marshals v canonically and returns the hex-encoded SHA-256
// of the resulting bytes. Used for anchor payload hashes and Feldman
// commitment-vector hashes, both of which must be byte-identical across
// independent implementations given identical inputs.
func HashCanonical(v interface{}) (string, []byte, error) {
	canon, err := MarshalCanonical(v)
	if err != nil {
		return "", nil, err
	}
	sum := Hash256(canon)
	return hex.EncodeToString(sum[:]), canon, nil
}
