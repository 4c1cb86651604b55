package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"pathwaymed-backend/corpus"
	"pathwaymed-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedInvoker routes each model call to a handler and records every call
// for assertion. Handlers dispatch on the stage markers in the default
// prompt templates.
type scriptedInvoker struct {
	mu     sync.Mutex
	calls  []invokeCall
	handle func(model string, messages []ChatMessage) (string, error)
}

type invokeCall struct {
	model    string
	messages []ChatMessage
}

func (s *scriptedInvoker) Invoke(ctx context.Context, model string, messages []ChatMessage, opts ...InvokeOption) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, invokeCall{model: model, messages: messages})
	s.mu.Unlock()
	return s.handle(model, messages)
}

func (s *scriptedInvoker) stageCalls(marker string) []invokeCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []invokeCall
	for _, call := range s.calls {
		if len(call.messages) > 0 && call.messages[0].Role == RoleSystem &&
			strings.Contains(call.messages[0].Content, marker) {
			out = append(out, call)
		}
	}
	return out
}

// Stage markers present in the default templates
const (
	markResolver    = "chat history"
	markClassifier  = "Known categories"
	markExtractor   = "disease reference document"
	markSynthesizer = "expert medical summarizer"
)

func systemOf(messages []ChatMessage) string {
	if len(messages) > 0 && messages[0].Role == RoleSystem {
		return messages[0].Content
	}
	return ""
}

func lastUserOf(messages []ChatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

type stubCorpus struct {
	docs  []models.CorpusDocument
	err   error
	loads int32
}

func (c *stubCorpus) Load(ctx context.Context) ([]models.CorpusDocument, error) {
	atomic.AddInt32(&c.loads, 1)
	if c.err != nil {
		return nil, c.err
	}
	return c.docs, nil
}

func testCorpus() *stubCorpus {
	return &stubCorpus{docs: []models.CorpusDocument{
		{DiseaseID: "Pneumonia", Content: "L1: cough\nL2: fever"},
		{DiseaseID: "Malaria", Content: "L1: fever\nL2: chills"},
		{DiseaseID: "Dengue", Content: "L1: rash"},
	}}
}

func newTestPipeline(invoker ModelInvoker, c corpus.Provider) *PipelineService {
	return NewPipelineService(
		PipelineWithInvoker(invoker),
		PipelineWithCorpus(c),
		PipelineWithModels("fast-model", "strong-model"),
	)
}

func TestAnswerMedicalQueryHappyPath(t *testing.T) {
	extractions := map[string]string{
		"Pneumonia": `{"answer": "Give amoxicillin", "context": "First-line for CAP", "disease": "Pneumonia", "source": {"lines": ["L1", "L2"]}, "source_notes": null}`,
		"Malaria":   `{"answer": "Start ACT", "context": null, "disease": "Malaria", "source": {"lines": ["L1"], "tables": {"T1": ["R2C3"]}}, "source_notes": "dosing table"}`,
	}

	invoker := &scriptedInvoker{}
	invoker.handle = func(model string, messages []ChatMessage) (string, error) {
		system := systemOf(messages)
		switch {
		case strings.Contains(system, markClassifier):
			assert.Equal(t, "fast-model", model)
			return `{"disease": ["Pneumonia", "Malaria"]}`, nil
		case strings.Contains(system, markExtractor):
			for disease, resp := range extractions {
				if strings.Contains(lastUserOf(messages), fmt.Sprintf("(%s)", disease)) {
					return resp, nil
				}
			}
			return "", errors.New("unexpected extraction document")
		case strings.Contains(system, markSynthesizer):
			assert.Equal(t, "strong-model", model)
			return "### Key Takeaways\nTreat promptly (Pneumonia).", nil
		default:
			return "", fmt.Errorf("unexpected stage: %q", system)
		}
	}

	svc := newTestPipeline(invoker, testCorpus())
	answer, err := svc.AnswerMedicalQuery(context.Background(), "fever and cough, what do I give?", nil)
	require.NoError(t, err)

	assert.Equal(t, "### Key Takeaways\nTreat promptly (Pneumonia).", answer.Answer)
	require.Len(t, answer.Sources, 2)
	assert.Equal(t, []string{"L1", "L2"}, answer.Sources["Pneumonia"].Lines)
	assert.Equal(t, []string{"R2C3"}, answer.Sources["Malaria"].Tables["T1"])

	// Fresh conversation: the resolver must not run, and only the two
	// classified documents reach extraction
	assert.Empty(t, invoker.stageCalls(markResolver))
	assert.Len(t, invoker.stageCalls(markExtractor), 2)
}

func TestAnswerMedicalQueryDirectAnswerFromHistory(t *testing.T) {
	invoker := &scriptedInvoker{}
	invoker.handle = func(model string, messages []ChatMessage) (string, error) {
		require.Contains(t, systemOf(messages), markResolver, "only the resolver may run")
		return `{"answer": "Amoxicillin 500mg three times daily.", "refined_query": null}`, nil
	}

	c := testCorpus()
	svc := newTestPipeline(invoker, c)
	history := []models.ChatTurn{
		{Role: RoleUser, Content: "What antibiotic for pneumonia?"},
		{Role: RoleAssistant, Content: "Amoxicillin 500mg three times daily."},
	}

	answer, err := svc.AnswerMedicalQuery(context.Background(), "what was the dose again?", history)
	require.NoError(t, err)

	assert.Equal(t, "Amoxicillin 500mg three times daily.", answer.Answer)
	assert.Empty(t, answer.Sources)
	assert.Equal(t, int32(0), atomic.LoadInt32(&c.loads), "direct answers must not load the corpus")
	assert.Len(t, invoker.calls, 1)
}

func TestAnswerMedicalQueryRefinedQueryUsedDownstream(t *testing.T) {
	invoker := &scriptedInvoker{}
	invoker.handle = func(model string, messages []ChatMessage) (string, error) {
		system := systemOf(messages)
		switch {
		case strings.Contains(system, markResolver):
			return `{"answer": null, "refined_query": "malaria treatment for a 4-year-old with fever"}`, nil
		case strings.Contains(system, markClassifier):
			assert.Contains(t, lastUserOf(messages), "malaria treatment for a 4-year-old")
			return `{"disease": ["Malaria"]}`, nil
		case strings.Contains(system, markExtractor):
			assert.Contains(t, lastUserOf(messages), "malaria treatment for a 4-year-old")
			return `{"answer": "Weight-based ACT", "context": null, "disease": "Malaria", "source": {"lines": ["L2"]}, "source_notes": null}`, nil
		case strings.Contains(system, markSynthesizer):
			// Synthesis sees the original query, not the refined one
			assert.Contains(t, lastUserOf(messages), "User Query: and for my younger one?")
			return "Use weight-based dosing (Malaria).", nil
		default:
			return "", fmt.Errorf("unexpected stage: %q", system)
		}
	}

	svc := newTestPipeline(invoker, testCorpus())
	history := []models.ChatTurn{
		{Role: RoleUser, Content: "How do I treat malaria in children?"},
		{Role: RoleAssistant, Content: "With ACT."},
	}

	answer, err := svc.AnswerMedicalQuery(context.Background(), "and for my younger one?", history)
	require.NoError(t, err)
	assert.Equal(t, "Use weight-based dosing (Malaria).", answer.Answer)
}

func TestAnswerMedicalQueryAmbiguousResolutionKeepsOriginal(t *testing.T) {
	invoker := &scriptedInvoker{}
	invoker.handle = func(model string, messages []ChatMessage) (string, error) {
		system := systemOf(messages)
		switch {
		case strings.Contains(system, markResolver):
			// Both fields set violates the contract: treat as ambiguous
			return `{"answer": "x", "refined_query": "y"}`, nil
		case strings.Contains(system, markClassifier):
			assert.Contains(t, lastUserOf(messages), "original question text")
			return `{"disease": []}`, nil
		default:
			return "", fmt.Errorf("unexpected stage: %q", system)
		}
	}

	svc := newTestPipeline(invoker, testCorpus())
	history := []models.ChatTurn{{Role: RoleUser, Content: "earlier"}, {Role: RoleAssistant, Content: "reply"}}

	answer, err := svc.AnswerMedicalQuery(context.Background(), "original question text", history)
	require.NoError(t, err)
	assert.Equal(t, NoMatchMessage, answer.Answer)
}

func TestAnswerMedicalQueryNoMatchSkipsExtraction(t *testing.T) {
	invoker := &scriptedInvoker{}
	invoker.handle = func(model string, messages []ChatMessage) (string, error) {
		require.Contains(t, systemOf(messages), markClassifier, "only the classifier may run")
		return `{"disease": []}`, nil
	}

	svc := newTestPipeline(invoker, testCorpus())
	answer, err := svc.AnswerMedicalQuery(context.Background(), "how do I fix my car?", nil)
	require.NoError(t, err)

	assert.Equal(t, NoMatchMessage, answer.Answer)
	assert.Empty(t, answer.Sources)
	assert.Len(t, invoker.calls, 1)
}

func TestClassifyDiseasesWhitelistAndDedupe(t *testing.T) {
	invoker := &scriptedInvoker{}
	invoker.handle = func(model string, messages []ChatMessage) (string, error) {
		return `{"disease": ["Malaria", "Ebola", "Malaria", "Pneumonia"]}`, nil
	}

	svc := newTestPipeline(invoker, testCorpus())
	matched, err := svc.ClassifyDiseases(context.Background(), "fever", []string{"Pneumonia", "Malaria", "Dengue"})
	require.NoError(t, err)

	// Invented identifiers are dropped, duplicates collapse, model order kept
	assert.Equal(t, []string{"Malaria", "Pneumonia"}, matched)
}

func TestClassifyDiseasesMalformedOutputMeansNoMatch(t *testing.T) {
	invoker := &scriptedInvoker{}
	invoker.handle = func(model string, messages []ChatMessage) (string, error) {
		return "Sorry, I cannot produce JSON today.", nil
	}

	svc := newTestPipeline(invoker, testCorpus())
	matched, err := svc.ClassifyDiseases(context.Background(), "fever", []string{"Malaria"})
	require.NoError(t, err)
	assert.Empty(t, matched)
}

func TestGatherEvidencePartialFailureIsIsolated(t *testing.T) {
	var calls int32
	invoker := &scriptedInvoker{}
	invoker.handle = func(model string, messages []ChatMessage) (string, error) {
		atomic.AddInt32(&calls, 1)
		if strings.Contains(lastUserOf(messages), "(Malaria)") {
			return "", fmt.Errorf("%w: upstream hiccup", ErrModelInvocation)
		}
		return `{"answer": "Give amoxicillin", "context": null, "disease": "Pneumonia", "source": {"lines": ["L1"]}, "source_notes": null}`, nil
	}

	svc := newTestPipeline(invoker, testCorpus())
	docs := []models.CorpusDocument{
		{DiseaseID: "Pneumonia", Content: "doc"},
		{DiseaseID: "Malaria", Content: "doc"},
	}

	results, err := svc.gatherEvidence(context.Background(), "q", docs, DefaultPrompts().Extractor)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	assert.True(t, results[0].Relevant())
	assert.False(t, results[1].Relevant(), "failed document degrades to not relevant")
}

func TestGatherEvidenceAllFailedPropagates(t *testing.T) {
	boom := fmt.Errorf("%w: everything is down", ErrModelInvocation)
	invoker := &scriptedInvoker{}
	invoker.handle = func(model string, messages []ChatMessage) (string, error) {
		return "", boom
	}

	svc := newTestPipeline(invoker, testCorpus())
	docs := []models.CorpusDocument{
		{DiseaseID: "Pneumonia", Content: "doc"},
		{DiseaseID: "Malaria", Content: "doc"},
	}

	_, err := svc.gatherEvidence(context.Background(), "q", docs, DefaultPrompts().Extractor)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelInvocation)
}

func TestSynthesizeNoEvidenceShortCircuits(t *testing.T) {
	invoker := &scriptedInvoker{}
	invoker.handle = func(model string, messages []ChatMessage) (string, error) {
		t.Fatal("synthesis must not call the model without evidence")
		return "", nil
	}

	svc := newTestPipeline(invoker, testCorpus())
	answer, err := svc.Synthesize(context.Background(), "q", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, NoEvidenceMessage, answer.Answer)
	assert.Empty(t, answer.Sources)
}

func TestSynthesizeDropsContractViolations(t *testing.T) {
	invoker := &scriptedInvoker{}
	invoker.handle = func(model string, messages []ChatMessage) (string, error) {
		facts := lastUserOf(messages)
		assert.Contains(t, facts, "Disease (Pneumonia)")
		assert.NotContains(t, facts, "orphan answer")
		return "Final answer (Pneumonia).", nil
	}

	svc := newTestPipeline(invoker, testCorpus())
	good := models.ExtractionResult{
		Answer:  strPtr("Give amoxicillin"),
		Disease: strPtr("Pneumonia"),
		Source:  &models.SourceMap{Lines: []string{"L1"}},
	}
	noDisease := models.ExtractionResult{
		Answer: strPtr("orphan answer"),
		Source: &models.SourceMap{Lines: []string{"L9"}},
	}
	notRelevant := models.ExtractionResult{}

	answer, err := svc.Synthesize(context.Background(), "q", nil, []models.ExtractionResult{good, noDisease, notRelevant})
	require.NoError(t, err)

	assert.Equal(t, "Final answer (Pneumonia).", answer.Answer)
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, []string{"L1"}, answer.Sources["Pneumonia"].Lines)
}

func TestAnswerMedicalQueryCorpusFailure(t *testing.T) {
	invoker := &scriptedInvoker{}
	invoker.handle = func(model string, messages []ChatMessage) (string, error) {
		return `{"disease": []}`, nil
	}

	svc := newTestPipeline(invoker, &stubCorpus{err: errors.New("bucket unreachable")})
	_, err := svc.AnswerMedicalQuery(context.Background(), "fever", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorpusLoad)
}

func TestAnswerMedicalQueryGuards(t *testing.T) {
	_, err := NewPipelineService(PipelineWithCorpus(testCorpus())).
		AnswerMedicalQuery(context.Background(), "q", nil)
	assert.ErrorIs(t, err, ErrInvokerNotSet)

	_, err = NewPipelineService(PipelineWithInvoker(&scriptedInvoker{})).
		AnswerMedicalQuery(context.Background(), "q", nil)
	assert.ErrorIs(t, err, ErrCorpusNotSet)
}

func TestExtractRelevantInfoIrrelevantDocument(t *testing.T) {
	invoker := &scriptedInvoker{}
	invoker.handle = func(model string, messages []ChatMessage) (string, error) {
		return `{"answer": null, "context": null, "disease": null, "source": null, "source_notes": null}`, nil
	}

	svc := newTestPipeline(invoker, testCorpus())
	result, err := svc.ExtractRelevantInfo(context.Background(), "q", models.CorpusDocument{DiseaseID: "Dengue", Content: "doc"}, DefaultPrompts().Extractor)
	require.NoError(t, err)
	assert.False(t, result.Relevant())
}

func TestWithExtractorPromptIgnoresBlank(t *testing.T) {
	cfg := answerConfig{extractorPrompt: "default"}
	WithExtractorPrompt("   ")(&cfg)
	assert.Equal(t, "default", cfg.extractorPrompt)

	WithExtractorPrompt("custom persona")(&cfg)
	assert.Equal(t, "custom persona", cfg.extractorPrompt)
}
