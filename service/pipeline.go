package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"pathwaymed-backend/corpus"
	"pathwaymed-backend/models"

	"github.com/panjf2000/ants/v2"
)

// Default cap on concurrent extraction calls; the effective pool size is
// min(cap, number of selected documents)
const defaultWorkerCap = 11

// Fixed user-facing messages for the pipeline's short-circuit exits
const (
	// NoMatchMessage is returned when the classifier finds no relevant category
	NoMatchMessage = "I could not identify any relevant diseases from your question. Could you share a few more clinical details, such as the main symptoms, their duration, and any vital signs?"
	// NoEvidenceMessage is returned when no document yields evidence
	NoEvidenceMessage = "I'm sorry, I couldn't find any information relevant to your question."
)

var (
	ErrCorpusLoad      = errors.New("failed to load document corpus")
	ErrEvidenceGather  = errors.New("evidence gathering failed")
	ErrInvokerNotSet   = errors.New("model invoker not set")
	ErrCorpusNotSet    = errors.New("corpus provider not set")
)

// PipelineService runs the medical query answering pipeline: history
// resolution, disease classification, concurrent evidence extraction, and
// answer synthesis.
type PipelineService struct {
	invoker      ModelInvoker
	corpus       corpus.Provider
	prompts      PromptSet
	pathwayModel string
	summaryModel string
	workerCap    int
}

// PipelineOption is a functional option for PipelineService
type PipelineOption func(*PipelineService)

// PipelineWithInvoker sets the model invoker
func PipelineWithInvoker(inv ModelInvoker) PipelineOption {
	return func(s *PipelineService) {
		s.invoker = inv
	}
}

// PipelineWithCorpus sets the corpus provider
func PipelineWithCorpus(p corpus.Provider) PipelineOption {
	return func(s *PipelineService) {
		s.corpus = p
	}
}

// PipelineWithPrompts sets the prompt templates
func PipelineWithPrompts(p PromptSet) PipelineOption {
	return func(s *PipelineService) {
		s.prompts = p
	}
}

// PipelineWithModels sets the fast (pathway) and strong (summarization) models
func PipelineWithModels(pathwayModel, summaryModel string) PipelineOption {
	return func(s *PipelineService) {
		s.pathwayModel = pathwayModel
		s.summaryModel = summaryModel
	}
}

// PipelineWithWorkerCap sets the extraction concurrency cap
func PipelineWithWorkerCap(n int) PipelineOption {
	return func(s *PipelineService) {
		s.workerCap = n
	}
}

// NewPipelineService creates a new pipeline service
func NewPipelineService(opts ...PipelineOption) *PipelineService {
	s := &PipelineService{
		prompts:   DefaultPrompts(),
		workerCap: defaultWorkerCap,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PathwayModel returns the fast model name used for the pipeline stages
func (s *PipelineService) PathwayModel() string {
	return s.pathwayModel
}

// AnswerOption configures one AnswerMedicalQuery invocation
type AnswerOption func(*answerConfig)

type answerConfig struct {
	extractorPrompt string
}

// WithExtractorPrompt overrides the extraction persona for this query
// (power-user custom prompts)
func WithExtractorPrompt(prompt string) AnswerOption {
	return func(c *answerConfig) {
		if strings.TrimSpace(prompt) != "" {
			c.extractorPrompt = prompt
		}
	}
}

// AnswerMedicalQuery answers a free-text clinical question against the
// disease corpus, using conversation history for context. The corpus is
// loaded fresh on every call.
func (s *PipelineService) AnswerMedicalQuery(ctx context.Context, query string, history []models.ChatTurn, opts ...AnswerOption) (*models.FinalAnswer, error) {
	if s.invoker == nil {
		return nil, ErrInvokerNotSet
	}
	if s.corpus == nil {
		return nil, ErrCorpusNotSet
	}

	cfg := answerConfig{extractorPrompt: s.prompts.Extractor}
	for _, opt := range opts {
		opt(&cfg)
	}

	// 1. Resolve against history; skipped entirely for a fresh conversation
	refined := query
	if len(history) > 0 {
		resolution, err := s.ResolveHistory(ctx, query, history)
		if err != nil {
			return nil, err
		}
		switch resolution.Kind {
		case models.HistoryDirectAnswer:
			return &models.FinalAnswer{
				Answer:  resolution.Text,
				Sources: map[string]models.SourceMap{},
			}, nil
		case models.HistoryRefinedQuery:
			refined = resolution.Text
		case models.HistoryAmbiguous:
			// Fall back to the original, unrefined query
		}
	}

	log.Printf("Using query: %s", refined)

	// 2. Load the corpus and classify the query against its diseases
	docs, err := s.corpus.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorpusLoad, err)
	}
	log.Printf("Loaded %d corpus documents.", len(docs))

	known := make([]string, 0, len(docs))
	byDisease := make(map[string]models.CorpusDocument, len(docs))
	for _, doc := range docs {
		known = append(known, doc.DiseaseID)
		byDisease[doc.DiseaseID] = doc
	}

	matched, err := s.ClassifyDiseases(ctx, refined, known)
	if err != nil {
		return nil, err
	}
	if len(matched) == 0 {
		return &models.FinalAnswer{
			Answer:  NoMatchMessage,
			Sources: map[string]models.SourceMap{},
		}, nil
	}

	selected := make([]models.CorpusDocument, 0, len(matched))
	for _, disease := range matched {
		selected = append(selected, byDisease[disease])
	}

	// 3. Extract evidence from the selected documents concurrently
	results, err := s.gatherEvidence(ctx, refined, selected, cfg.extractorPrompt)
	if err != nil {
		return nil, err
	}

	relevant := make([]models.ExtractionResult, 0, len(results))
	for _, r := range results {
		if r.Relevant() {
			relevant = append(relevant, r)
		}
	}

	// 4. Synthesize the final cited answer
	return s.Synthesize(ctx, query, history, relevant)
}

// ResolveHistory asks the fast model whether the query was already answered
// in history, or for a context-enriched restatement suitable for fresh
// document search. Ambiguous output (neither or both fields) falls back to
// the caller's original query.
func (s *PipelineService) ResolveHistory(ctx context.Context, query string, history []models.ChatTurn) (models.HistoryResolution, error) {
	messages := make([]ChatMessage, 0, len(history)+2)
	messages = append(messages, ChatMessage{Role: RoleSystem, Content: s.prompts.HistoryResolver})
	for _, turn := range history {
		messages = append(messages, ChatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, ChatMessage{Role: RoleUser, Content: "User Query: " + query})

	raw, err := s.invoker.Invoke(ctx, s.pathwayModel, messages, WithTemperature(0.2))
	if err != nil {
		return models.HistoryResolution{}, err
	}

	fields := parseModelJSON(raw, "answer", "refined_query")
	answer := jsonString(fields["answer"])
	refined := jsonString(fields["refined_query"])

	switch {
	case answer != nil && refined == nil:
		return models.HistoryResolution{Kind: models.HistoryDirectAnswer, Text: *answer}, nil
	case refined != nil && answer == nil:
		return models.HistoryResolution{Kind: models.HistoryRefinedQuery, Text: *refined}, nil
	default:
		return models.HistoryResolution{Kind: models.HistoryAmbiguous}, nil
	}
}

// ClassifyDiseases maps the refined query to the subset of known disease
// categories it concerns. Identifiers the model invents are dropped.
func (s *PipelineService) ClassifyDiseases(ctx context.Context, refined string, known []string) ([]string, error) {
	messages := []ChatMessage{
		{Role: RoleSystem, Content: s.prompts.FormatClassifier(known)},
		{Role: RoleUser, Content: "User Query: " + refined},
	}

	raw, err := s.invoker.Invoke(ctx, s.pathwayModel, messages, WithTemperature(0))
	if err != nil {
		return nil, err
	}

	fields := parseModelJSON(raw, "disease")
	listed := jsonStringSlice(fields["disease"])

	whitelist := make(map[string]bool, len(known))
	for _, id := range known {
		whitelist[id] = true
	}

	seen := make(map[string]bool, len(listed))
	matched := make([]string, 0, len(listed))
	for _, id := range listed {
		if whitelist[id] && !seen[id] {
			matched = append(matched, id)
			seen[id] = true
		}
	}
	return matched, nil
}

// ExtractRelevantInfo judges one document against the refined query and, if
// relevant, extracts the answer, supporting context, and block citations.
// Malformed model output degrades to an all-nil result, never an error.
func (s *PipelineService) ExtractRelevantInfo(ctx context.Context, refined string, doc models.CorpusDocument, extractorPrompt string) (models.ExtractionResult, error) {
	messages := []ChatMessage{
		{Role: RoleSystem, Content: extractorPrompt},
		{Role: RoleUser, Content: fmt.Sprintf("User Query: %s\n\nDisease document (%s):\n%s", refined, doc.DiseaseID, doc.Content)},
	}

	raw, err := s.invoker.Invoke(ctx, s.pathwayModel, messages, WithTemperature(0.2))
	if err != nil {
		return models.ExtractionResult{}, err
	}

	fields := parseModelJSON(raw, "answer", "context", "disease", "source", "source_notes")
	result := models.ExtractionResult{
		Answer:      jsonString(fields["answer"]),
		Context:     jsonString(fields["context"]),
		Disease:     jsonString(fields["disease"]),
		SourceNotes: jsonString(fields["source_notes"]),
	}

	if rawSource := fields["source"]; rawSource != nil {
		var source models.SourceMap
		if err := json.Unmarshal(rawSource, &source); err != nil {
			log.Printf("Failed to parse source map for %s: %q", doc.DiseaseID, string(rawSource))
		} else {
			result.Source = &source
		}
	}

	return result, nil
}

// gatherEvidence runs extraction once per document on a bounded worker pool.
// A failing document is logged and treated as "not relevant" so it cannot
// abort the other extractions; only when every document fails does the first
// error surface.
func (s *PipelineService) gatherEvidence(ctx context.Context, refined string, docs []models.CorpusDocument, extractorPrompt string) ([]models.ExtractionResult, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	capSize := s.workerCap
	if capSize <= 0 {
		capSize = defaultWorkerCap
	}
	if len(docs) < capSize {
		capSize = len(docs)
	}

	pool, err := ants.NewPool(capSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEvidenceGather, err)
	}
	defer pool.Release()

	results := make([]models.ExtractionResult, len(docs))
	errs := make([]error, len(docs))
	var wg sync.WaitGroup

	for i := range docs {
		i := i
		wg.Add(1)
		task := func() {
			defer wg.Done()
			res, err := s.ExtractRelevantInfo(ctx, refined, docs[i], extractorPrompt)
			if err != nil {
				errs[i] = err
				log.Printf("Warning: extraction failed for %s: %v", docs[i].DiseaseID, err)
				return
			}
			results[i] = res
		}
		if err := pool.Submit(task); err != nil {
			wg.Done()
			errs[i] = err
		}
	}
	wg.Wait()

	failed := 0
	var first error
	for _, e := range errs {
		if e != nil {
			failed++
			if first == nil {
				first = e
			}
		}
	}
	if failed == len(docs) {
		return nil, first
	}

	return results, nil
}

// Synthesize combines the non-null extractions and the conversation history
// into one clinically-styled answer. The citation map is built from the
// extraction results, never from the model's free text. Records that carry
// an answer without a disease or source violate the extraction contract and
// are skipped with a warning.
func (s *PipelineService) Synthesize(ctx context.Context, query string, history []models.ChatTurn, extractions []models.ExtractionResult) (*models.FinalAnswer, error) {
	usable := make([]models.ExtractionResult, 0, len(extractions))
	for _, r := range extractions {
		if !r.Relevant() {
			continue
		}
		if r.Disease == nil || r.Source == nil {
			log.Printf("Warning: dropping extraction with answer but missing disease or source")
			continue
		}
		usable = append(usable, r)
	}

	if len(usable) == 0 {
		return &models.FinalAnswer{
			Answer:  NoEvidenceMessage,
			Sources: map[string]models.SourceMap{},
		}, nil
	}

	var combined strings.Builder
	for i, r := range usable {
		if i > 0 {
			combined.WriteString("\n\n")
		}
		combined.WriteString(fmt.Sprintf("- Disease (%s)\n  Answer: %s", *r.Disease, *r.Answer))
		if r.Context != nil {
			combined.WriteString("\n  Context: " + *r.Context)
		}
	}

	messages := make([]ChatMessage, 0, len(history)+2)
	messages = append(messages, ChatMessage{Role: RoleSystem, Content: s.prompts.Synthesizer})
	for _, turn := range history {
		messages = append(messages, ChatMessage{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, ChatMessage{
		Role:    RoleUser,
		Content: fmt.Sprintf("User Query: %s\n\nCollected facts:\n%s", query, combined.String()),
	})

	// The synthesis model rejects explicit temperatures; none is set
	answer, err := s.invoker.Invoke(ctx, s.summaryModel, messages)
	if err != nil {
		return nil, err
	}

	sources := make(map[string]models.SourceMap, len(usable))
	for _, r := range usable {
		sources[*r.Disease] = *r.Source
	}

	return &models.FinalAnswer{Answer: answer, Sources: sources}, nil
}
