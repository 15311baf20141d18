package profile

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// Schema returns the JSON schema of a profile document.
func Schema() ([]byte, error) {
	return json.MarshalIndent(jsonschema.Reflect(&Profile{}), "", "  ")
}
