package profile

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"github.com/samber/lo"
)

// ErrMalformed is returned when a profile document is not valid JSON for the
// schema.
var ErrMalformed = errors.New("malformed profile")

// Decode reads one profile document. Missing fields take their default values
// and a missing name becomes fallbackName; any syntax or type error rejects the
// whole document so that nothing is partially applied. A key_bindings object
// replaces the default layout; see fillBindings. The result is validated.
func Decode(r io.Reader, fallbackName string) (Profile, error) {
	p := Default()
	p.Name = ""
	// json merges into a non-nil map
	p.KeyBindings = nil
	dec := json.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return Profile{}, errors.Wrapf(ErrMalformed, "%v", err)
	}
	if dec.More() {
		return Profile{}, errors.Wrap(ErrMalformed, "trailing data after profile object")
	}
	if p.Name == "" {
		p.Name = fallbackName
	}
	p.KeyBindings = fillBindings(p.KeyBindings)
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// fillBindings gives every action the document left unbound its default key,
// unless the document already uses that key for another action.
func fillBindings(b map[Action]string) map[Action]string {
	if b == nil {
		return DefaultKeyBindings()
	}
	used := lo.SliceToMap(lo.Values(b), func(key string) (string, struct{}) {
		return key, struct{}{}
	})
	defaults := DefaultKeyBindings()
	for _, action := range Actions {
		if _, ok := b[action]; ok {
			continue
		}
		key := defaults[action]
		if _, taken := used[key]; taken {
			continue
		}
		b[action] = key
		used[key] = struct{}{}
	}
	return b
}

// Encode writes p as indented JSON.
func Encode(w io.Writer, p Profile) error {
	data, err := json.MarshalIndent(p, "", "    ")
	if err != nil {
		return errors.Wrap(err, "encoding profile")
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

// Marshal returns the canonical JSON form of p.
func Marshal(p Profile) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
