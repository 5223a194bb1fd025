package retrieval

import (
	_ "embed"
	"fmt"
)

//go:embed wcag_library.json
var embeddedLibrary []byte

// LoadLibrary decodes the embedded WCAG knowledge library.
func LoadLibrary() ([]Doc, error) {
	var docs []Doc
	if err := json.Unmarshal(embeddedLibrary, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode embedded knowledge library: %w", err)
	}
	return docs, nil
}
