package normalize

// Wire types for the raw axe-core scan payload. The scanner is an external
// collaborator; these structs mirror only the fields the pipeline consumes and
// tolerate everything else being absent.

type axePayload struct {
	Violations []axeResult `json:"violations"`
	Incomplete []axeResult `json:"incomplete"`
	Passes     []axeResult `json:"passes"`
}

type axeResult struct {
	ID      string    `json:"id"`
	Impact  string    `json:"impact"`
	Help    string    `json:"help"`
	HelpURL string    `json:"helpUrl"`
	Tags    []string  `json:"tags"`
	Nodes   []axeNode `json:"nodes"`
}

type axeNode struct {
	Target         []string `json:"target"`
	HTML           string   `json:"html"`
	Impact         string   `json:"impact"`
	FailureSummary string   `json:"failureSummary"`
	Screenshot     string   `json:"screenshot"`
}

// selector returns the primary CSS selector for the node, or "" if absent.
func (n axeNode) selector() string {
	if len(n.Target) == 0 {
		return ""
	}
	return n.Target[0]
}
