package config

import (
	_ "embed"
	"fmt"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var settingsSchema string

// ValidateSettings checks the raw settings tree against the embedded schema
// before it is unmarshalled into Config. Validating the raw map means typos
// and out-of-range knobs are reported with their JSON paths instead of being
// silently zeroed by the struct decode.
func ValidateSettings(settings map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(settingsSchema),
		gojsonschema.NewGoLoader(settings),
	)
	if err != nil {
		return fmt.Errorf("validate config schema: %w", err)
	}
	if result.Valid() {
		return nil
	}

	// sorted so the error text is stable across runs
	problems := make([]string, 0, len(result.Errors()))
	for _, schemaErr := range result.Errors() {
		problems = append(problems, schemaErr.String())
	}
	sort.Strings(problems)

	return fmt.Errorf("config schema validation failed: %s", strings.Join(problems, "; "))
}
