// SPDX-License-Identifier: MPL-2.0

package formula

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/kegbrew/kegbrew/pkg/cueutil"
)

//go:embed formula_schema.cue
var formulaSchema []byte

// Parse reads and parses a formula descriptor from path.
func Parse(path string) (*Formula, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read formula at %s: %w", path, err)
	}
	return ParseBytes(data, path)
}

// ParseBytes decodes a descriptor against the #Formula schema and runs
// Validate. Validation problems are returned as ValidationErrors.
func ParseBytes(data []byte, path string) (*Formula, error) {
	result, err := cueutil.ParseAndDecode[Formula](formulaSchema, data, "#Formula", cueutil.WithFilename(path))
	if err != nil {
		return nil, err
	}

	f := result.Value
	f.FilePath = path
	if errs := f.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("%s: %w", path, errs)
	}
	return f, nil
}
