package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PromptSet maps each pipeline stage to its instruction template. Templates
// are configuration, not logic: deployments can override any stage by
// dropping a <stage>.txt file into the prompts directory.
type PromptSet struct {
	HistoryResolver string
	Classifier      string // takes the category list via FormatClassifier
	Extractor       string
	Synthesizer     string
	Title           string // takes the first user message via FormatTitle
	Summary         string
}

const defaultHistoryResolverPrompt = "You are a medical assistant reviewing a conversation. " +
	"Given the user's query and the chat history, choose exactly one of the following actions:\n" +
	"1) If the question was already explicitly answered in history, return JSON {\"answer\": exact answer text, \"refined_query\": null}.\n" +
	"2) Otherwise (including when context has shifted), return JSON {\"answer\": null, \"refined_query\": clarified question that incorporates any relevant entities or context needed to search fresh source documents}.\n" +
	"Always output valid JSON with exactly these two keys and no additional text."

const defaultClassifierPrompt = "You are a medical assistant triaging a clinical question against a fixed list of disease categories. " +
	"Return exactly the subset of categories the question concerns. Include a category when it is clearly indicated by the question, " +
	"strongly suggested as a differential, or a reasonable clinical possibility given the context. " +
	"Exclude categories of only marginal or theoretical relevance. " +
	"Respond with valid JSON {\"disease\": [list of category names]} using the exact spellings from the list below and no additional text. " +
	"If nothing matches, return {\"disease\": []}.\n\nKnown categories:\n%s"

const defaultExtractorPrompt = "You are a medical assistant. " +
	"Given a user query and a disease reference document, first determine whether this document's disease plausibly relates to the query. " +
	"• If it does NOT, respond with {\"answer\": null, \"context\": null, \"disease\": null, \"source\": null, \"source_notes\": null}. " +
	"• If it DOES, extract five things:  " +
	"1) \"answer\": the minimal excerpt that directly answers the query,  " +
	"2) \"context\": every passage of surrounding text needed to support the answer,  " +
	"3) \"disease\": the disease identifier of this document, exactly as given,  " +
	"4) \"source\": an object {\"lines\": [line ids], \"images\": [image ids], \"tables\": {table id: [cell refs like \"R2C3\"]}} " +
	"listing every block (L#, I#, T# cell) that the answer or context was quoted or paraphrased from,  " +
	"5) \"source_notes\": any caveat about the cited blocks, else null.  " +
	"Always return valid JSON with exactly these keys: \"answer\", \"context\", \"disease\", \"source\", and \"source_notes\"."

const defaultSynthesizerPrompt = "You are an experienced doctor working in a resource-constrained environment and an expert medical summarizer. Follow these steps:\n" +
	"1. If the user's question is already answered in our conversation, respond immediately using that content.\n" +
	"2. Identify the key concepts in the question.\n" +
	"3. Begin your reply with a \"### Key Takeaways\" section: the concise, actionable points first, including danger signs, contraindications, and referral thresholds where relevant.\n" +
	"4. For each provided fact whose answer is clearly relevant, integrate its answer and, if needed, its context, grouping related points under logical sub-headings.\n" +
	"5. Insert an inline citation in parentheses after each fact, e.g. \"(Pneumonia)\".\n" +
	"6. Discard any facts whose answer or context is not directly helpful.\n" +
	"7. Present detailed sections under clear markdown headings (e.g. \"### Symptom Overview\", \"### Treatment Guidelines\"), tailored to low-resource settings.\n" +
	"8. Use blank lines between paragraphs for readability, and ensure proper markdown formatting throughout.\n" +
	"9. If no facts are relevant, reply exactly: \"I'm sorry, I couldn't find any information relevant to your question.\"."

const defaultTitlePrompt = "You're a smart assistant. Given the first user message below, come up with a concise, human-readable chat title " +
	"(no more than 5 words):\n\n“%s”"

const defaultSummaryPrompt = "Please summarize the entire conversation as a single, " +
	"concise narrative paragraph that a busy doctor can quickly scan to " +
	"understand what happened. Focus on the patient scenario, " +
	"including age, key symptoms, relevant findings and vitals, " +
	"your diagnostic classification using low-resource criteria, " +
	"and the treatment plan (drug choice and dosing, supportive " +
	"measures, patient counseling). Clearly state thresholds for " +
	"referral or escalation, and the role of community health " +
	"workers in follow-up or home monitoring. Do not use bullet " +
	"points, headings, or mention platform or AI guidance; " +
	"write only a clear, clinically focused case summary in past tense."

// DefaultPrompts returns the built-in prompt templates
func DefaultPrompts() PromptSet {
	return PromptSet{
		HistoryResolver: defaultHistoryResolverPrompt,
		Classifier:      defaultClassifierPrompt,
		Extractor:       defaultExtractorPrompt,
		Synthesizer:     defaultSynthesizerPrompt,
		Title:           defaultTitlePrompt,
		Summary:         defaultSummaryPrompt,
	}
}

// LoadPrompts returns the defaults overlaid with any per-stage override
// files found in dir (history_resolver.txt, classifier.txt, extractor.txt,
// synthesizer.txt, title.txt, summary.txt). An empty dir means defaults.
func LoadPrompts(dir string) (PromptSet, error) {
	prompts := DefaultPrompts()
	if dir == "" {
		return prompts, nil
	}

	stages := map[string]*string{
		"history_resolver": &prompts.HistoryResolver,
		"classifier":       &prompts.Classifier,
		"extractor":        &prompts.Extractor,
		"synthesizer":      &prompts.Synthesizer,
		"title":            &prompts.Title,
		"summary":          &prompts.Summary,
	}

	for stage, target := range stages {
		path := filepath.Join(dir, stage+".txt")
		content, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return prompts, fmt.Errorf("failed to read prompt override %s: %w", path, err)
		}
		if text := strings.TrimSpace(string(content)); text != "" {
			*target = text
		}
	}

	return prompts, nil
}

// FormatClassifier renders the classifier template with the category list
func (p PromptSet) FormatClassifier(categories []string) string {
	var list strings.Builder
	for _, c := range categories {
		list.WriteString("- ")
		list.WriteString(c)
		list.WriteString("\n")
	}
	return fmt.Sprintf(p.Classifier, list.String())
}

// FormatTitle renders the title template with the first user message
func (p PromptSet) FormatTitle(firstMessage string) string {
	return fmt.Sprintf(p.Title, firstMessage)
}
