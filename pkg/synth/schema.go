package synth

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/pkg/errors"
	"github.com/xeipuuv/gojsonschema"
)

var (
	responseSchemaOnce sync.Once
	responseSchemaJSON string
)

// ResponseSchemaJSON is the JSON schema of Query, as shown to the model and
// used to validate its answers.
func ResponseSchemaJSON() string {
	responseSchemaOnce.Do(func() {
		r := jsonschema.Reflector{
			Anonymous:                 true,
			DoNotReference:            true,
			AllowAdditionalProperties: true,
		}
		s := r.Reflect(&Query{})
		s.Version = ""
		b, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			panic(err)
		}
		responseSchemaJSON = string(b)
	})
	return responseSchemaJSON
}

func validateResponse(payload string) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(ResponseSchemaJSON()),
		gojsonschema.NewStringLoader(payload),
	)
	if err != nil {
		return errors.Wrap(err, "validate response")
	}
	if result.Valid() {
		return nil
	}
	var descs []string
	for _, desc := range result.Errors() {
		descs = append(descs, desc.String())
	}
	return errors.Errorf("response does not match schema: %s", strings.Join(descs, "; "))
}
