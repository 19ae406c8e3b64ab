package config

import "os"

// ExpandEnv expands ${VAR}/$VAR references in raw YAML bytes before
// unmarshalling. Missing variables expand to empty string; Validate
// catches required fields left empty.
func ExpandEnv(data []byte) []byte {
	return []byte(os.ExpandEnv(string(data)))
}
