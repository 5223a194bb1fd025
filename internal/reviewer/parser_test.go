package reviewer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerdictResponse(t *testing.T) {
	tests := []struct {
		name        string
		response    string
		wantOutcome string
		wantConf    float64
		wantErr     bool
	}{
		{
			name:        "bare json",
			response:    `{"outcome": "confirmed", "confidence": 0.9, "rationale": "Ratio is 2.5:1."}`,
			wantOutcome: "confirmed",
			wantConf:    0.9,
		},
		{
			name: "fenced json block",
			response: "```json\n" +
				`{"outcome": "false-positive", "confidence": 0.8, "rationale": "Inactive control."}` +
				"\n```",
			wantOutcome: "false-positive",
			wantConf:    0.8,
		},
		{
			name: "fenced without language tag",
			response: "```\n" +
				`{"outcome": "confirmed", "confidence": 0.7, "rationale": "ok"}` +
				"\n```",
			wantOutcome: "confirmed",
			wantConf:    0.7,
		},
		{
			name:        "conversational framing",
			response:    `Here is my verdict: {"outcome": "needs-human-review", "confidence": 0.4, "rationale": "Unclear."} Hope that helps!`,
			wantOutcome: "needs-human-review",
			wantConf:    0.4,
		},
		{
			name:        "whitespace padding",
			response:    "\n\n  {\"outcome\": \"confirmed\", \"confidence\": 1, \"rationale\": \"r\"}  \n",
			wantOutcome: "confirmed",
			wantConf:    1,
		},
		{
			name:     "no json object",
			response: "I cannot answer that.",
			wantErr:  true,
		},
		{
			name:     "broken json",
			response: `{"outcome": "confirmed", "confidence": `,
			wantErr:  true,
		},
		{
			name:     "empty response",
			response: "",
			wantErr:  true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			wire, err := parseVerdictResponse(tc.response)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantOutcome, wire.Outcome)
			assert.InDelta(t, tc.wantConf, wire.Confidence, 1e-9)
		})
	}
}

func TestTruncateForError(t *testing.T) {
	assert.Equal(t, "short", truncateForError("short", 10))
	long := truncateForError("0123456789abcdef", 10)
	assert.Equal(t, "0123456789...", long)
}
