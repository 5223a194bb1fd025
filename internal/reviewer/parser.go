package reviewer

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Regex uses \x60 for backticks because Go raw strings cannot contain them.
var jsonObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")

// verdictWire is the JSON shape the judgment capability is asked to return.
type verdictWire struct {
	Outcome    string  `json:"outcome"`
	Confidence float64 `json:"confidence"`
	Rationale  string  `json:"rationale"`
}

// parseVerdictResponse extracts the verdict JSON object out of an LLM
// response, tolerating markdown code fences and conversational framing
// around the object.
func parseVerdictResponse(response string) (*verdictWire, error) {
	response = strings.TrimSpace(response)
	jsonStr := response

	if strings.HasPrefix(response, "```") {
		if m := jsonObjectRegex.FindStringSubmatch(response); len(m) > 1 {
			jsonStr = m[1]
		}
	} else if !strings.HasPrefix(response, "{") {
		// Find object boundaries inside conversational text.
		first := strings.Index(response, "{")
		last := strings.LastIndex(response, "}")
		if first == -1 || last <= first {
			return nil, fmt.Errorf("no JSON object found in response")
		}
		jsonStr = response[first : last+1]
	}

	var wire verdictWire
	if err := json.Unmarshal([]byte(jsonStr), &wire); err != nil {
		return nil, fmt.Errorf("failed to unmarshal verdict JSON: %w (extracted: %s)",
			err, truncateForError(jsonStr, 300))
	}
	return &wire, nil
}

func truncateForError(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
