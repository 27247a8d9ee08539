package modkit

import "strconv"

// OptionBool parses a recognized boolean writer option (spec §6: "true"/"false").
// Returns def and no error if the key is absent.
func OptionBool(opts map[string]string, format, key string, def bool) (bool, error) {
	v, ok := opts[key]
	if !ok {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, Errorf(format, KindInvalidParameter, err, "%s=%q must be true or false", key, v)
	}
	return b, nil
}

// OptionString returns a recognized string option, or def if absent.
func OptionString(opts map[string]string, key, def string) string {
	if v, ok := opts[key]; ok {
		return v
	}
	return def
}
