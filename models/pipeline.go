package models

// ChatTurn is one prior turn of a conversation as seen by the pipeline.
// Role is "user" or "assistant"; order is chronological.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CorpusDocument is one disease reference document. Content keeps the
// block identifiers (L<n> lines, I<n> image summaries, T<n> tables with
// R<r>C<c> cells) verbatim so citations stay addressable.
type CorpusDocument struct {
	DiseaseID string `json:"disease_id"`
	Content   string `json:"content"`
}

// SourceMap enumerates the document blocks an extraction drew on
type SourceMap struct {
	Lines  []string            `json:"lines,omitempty"`
	Images []string            `json:"images,omitempty"`
	Tables map[string][]string `json:"tables,omitempty"`
}

// ExtractionResult is the outcome of judging one document against one query.
// All fields are nil when the document is irrelevant. When Answer is non-nil,
// Disease and Source must be non-nil as well.
type ExtractionResult struct {
	Answer      *string    `json:"answer"`
	Context     *string    `json:"context"`
	Disease     *string    `json:"disease"`
	Source      *SourceMap `json:"source"`
	SourceNotes *string    `json:"source_notes"`
}

// Relevant reports whether the document yielded usable evidence
func (r *ExtractionResult) Relevant() bool {
	return r != nil && r.Answer != nil
}

// HistoryKind tags the outcome of resolving a query against history
type HistoryKind int

const (
	// HistoryAmbiguous means the model produced neither or both fields;
	// callers fall back to the original query
	HistoryAmbiguous HistoryKind = iota
	// HistoryDirectAnswer means the question was already answered in history
	HistoryDirectAnswer
	// HistoryRefinedQuery means the query was restated for fresh search
	HistoryRefinedQuery
)

// HistoryResolution is the tagged result of the history stage
type HistoryResolution struct {
	Kind HistoryKind
	Text string
}

// FinalAnswer is the pipeline's terminal output: the synthesized reply and
// the per-disease citation map built from the extraction results
type FinalAnswer struct {
	Answer  string               `json:"answer"`
	Sources map[string]SourceMap `json:"sources"`
}
