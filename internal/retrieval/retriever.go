// Package retrieval grounds review prompts in topic-scoped reference
// material: an embedded library of WCAG guidance documents, optionally
// supplemented with prior confirmed verdicts from the run store.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/a11yscope/a11yscope-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrRetrievalUnavailable marks a knowledge source that could not be
// consulted. It is always non-fatal: the prompt builder degrades to a
// context-free prompt.
var ErrRetrievalUnavailable = errors.New("retrieval source unavailable")

// Doc is one reference document in the knowledge library.
type Doc struct {
	ID       string        `json:"id"`
	Topic    schemas.Topic `json:"topic"`
	Criteria []string      `json:"criteria,omitempty"`
	Title    string        `json:"title"`
	Guidance []string      `json:"guidance"`
	Pitfalls []string      `json:"pitfalls,omitempty"`
}

// Options tunes the retriever.
type Options struct {
	TopK              int
	Timeout           time.Duration
	PriorVerdicts     bool
	PriorVerdictLimit int
}

// KnowledgeRetriever ranks library documents against a candidate and returns
// the top-K as prompt snippets, most relevant first.
type KnowledgeRetriever struct {
	docs   []Doc
	opts   Options
	store  schemas.Store
	logger *zap.Logger
}

// New builds a retriever over the given documents. store may be nil, in which
// case prior-verdict retrieval is disabled regardless of options.
func New(docs []Doc, opts Options, store schemas.Store, logger *zap.Logger) *KnowledgeRetriever {
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	return &KnowledgeRetriever{
		docs:   docs,
		opts:   opts,
		store:  store,
		logger: logger.Named("retriever"),
	}
}

// NewFromLibrary builds a retriever over the embedded knowledge library.
func NewFromLibrary(opts Options, store schemas.Store, logger *zap.Logger) (*KnowledgeRetriever, error) {
	docs, err := LoadLibrary()
	if err != nil {
		return nil, err
	}
	return New(docs, opts, store, logger), nil
}

// Retrieve returns the bounded, relevance-ranked context for a candidate.
// A partial context plus a wrapped ErrRetrievalUnavailable is returned when a
// secondary source fails; the caller counts the degradation and proceeds.
func (r *KnowledgeRetriever) Retrieve(ctx context.Context, cand schemas.Candidate) (schemas.RetrievedContext, error) {
	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	snippets := r.rankDocs(cand)
	var retErr error

	if r.opts.PriorVerdicts && r.store != nil {
		prior, err := r.priorVerdictSnippets(ctx, cand.Topic)
		if err != nil {
			r.logger.Warn("Prior verdict lookup failed, continuing without",
				zap.String("issue_id", cand.Issue.ID), zap.Error(err))
			retErr = fmt.Errorf("%w: %v", ErrRetrievalUnavailable, err)
		} else {
			snippets = append(snippets, prior...)
		}
	}

	if len(snippets) > r.opts.TopK {
		snippets = snippets[:r.opts.TopK]
	}
	return schemas.RetrievedContext{Snippets: snippets}, retErr
}

// rankDocs scores the library against the candidate and renders the winners.
// Only documents for the candidate's topic compete; a matching success
// criterion outranks any lexical similarity.
func (r *KnowledgeRetriever) rankDocs(cand schemas.Candidate) []schemas.Snippet {
	query := tokenize(cand.Issue.Message + " " + cand.Issue.FailureSummary + " " + cand.Issue.Selector)
	primary := cand.Issue.PrimaryCriterion()

	type scored struct {
		doc   Doc
		score float64
	}
	var matches []scored
	for _, d := range r.docs {
		if d.Topic != cand.Topic {
			continue
		}
		s := overlapScore(query, tokenize(docText(d)))
		if primary != "" && containsString(d.Criteria, primary) {
			s += 10 // criterion match dominates lexical overlap
		}
		if s <= 0 {
			continue
		}
		matches = append(matches, scored{doc: d, score: s})
	}

	// Deterministic order: score descending, then doc ID.
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].doc.ID < matches[j].doc.ID
	})

	snippets := make([]schemas.Snippet, 0, len(matches))
	for _, m := range matches {
		snippets = append(snippets, schemas.Snippet{
			SourceID: m.doc.ID,
			Text:     renderDoc(m.doc),
		})
	}
	return snippets
}

func (r *KnowledgeRetriever) priorVerdictSnippets(ctx context.Context, topic schemas.Topic) ([]schemas.Snippet, error) {
	records, err := r.store.PriorVerdicts(ctx, topic, r.opts.PriorVerdictLimit)
	if err != nil {
		return nil, err
	}
	snippets := make([]schemas.Snippet, 0, len(records))
	for _, rec := range records {
		snippets = append(snippets, schemas.Snippet{
			SourceID: "prior:" + rec.ID,
			Text: fmt.Sprintf("Prior verdict for rule %s (%s): %s — %s",
				rec.RuleID, rec.Selector, rec.Outcome, rec.Rationale),
		})
	}
	return snippets, nil
}

// renderDoc flattens a document into deterministic prompt text.
func renderDoc(d Doc) string {
	var b strings.Builder
	b.WriteString(d.Title)
	for _, g := range d.Guidance {
		b.WriteString("\n- Do: ")
		b.WriteString(g)
	}
	for _, p := range d.Pitfalls {
		b.WriteString("\n- Don't: ")
		b.WriteString(p)
	}
	return b.String()
}

func docText(d Doc) string {
	parts := append([]string{d.Title}, d.Guidance...)
	parts = append(parts, d.Pitfalls...)
	return strings.Join(parts, " ")
}

var tokenRegex = regexp.MustCompile(`[a-z0-9]+`)

// tokenize lowercases and splits text into distinct tokens of length >= 3.
func tokenize(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, tok := range tokenRegex.FindAllString(strings.ToLower(text), -1) {
		if len(tok) < 3 {
			continue
		}
		out[tok] = struct{}{}
	}
	return out
}

// overlapScore is the count of shared tokens between query and doc.
func overlapScore(query, doc map[string]struct{}) float64 {
	var n float64
	for tok := range query {
		if _, ok := doc[tok]; ok {
			n++
		}
	}
	return n
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
