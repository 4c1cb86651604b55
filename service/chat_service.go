package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"pathwaymed-backend/models"
	"pathwaymed-backend/repository"

	"github.com/google/uuid"
)

// DefaultConversationTitle is used when title generation fails
const DefaultConversationTitle = "New Chat"

// ErrConversationAccess is returned when a conversation does not belong to the user
var ErrConversationAccess = errors.New("conversation not found")

// modelPricing maps model names to USD cost per 1M tokens (input, output).
// Token estimates are split evenly between input and output.
var modelPricing = map[string][2]float64{
	"gemini-2.0-flash": {0.10, 0.40},
	"gemini-2.5-pro":   {1.25, 10.00},
	"gemini-2.5-flash": {0.30, 2.50},
}

// ChatService ties conversations, the answer pipeline, and usage metrics together
type ChatService struct {
	convRepo     *repository.ConversationRepository
	promptRepo   *repository.PromptRepository
	metricRepo   *repository.AnalyticsRepository
	userRepo     *repository.UserRepository
	pipeline     *PipelineService
	invoker      ModelInvoker
	prompts      PromptSet
	summaryModel string
}

// ChatOption configures a ChatService
type ChatOption func(*ChatService)

// ChatWithConversationRepo sets the conversation repository
func ChatWithConversationRepo(repo *repository.ConversationRepository) ChatOption {
	return func(s *ChatService) { s.convRepo = repo }
}

// ChatWithPromptRepo sets the prompt repository
func ChatWithPromptRepo(repo *repository.PromptRepository) ChatOption {
	return func(s *ChatService) { s.promptRepo = repo }
}

// ChatWithAnalyticsRepo sets the analytics repository
func ChatWithAnalyticsRepo(repo *repository.AnalyticsRepository) ChatOption {
	return func(s *ChatService) { s.metricRepo = repo }
}

// ChatWithUserRepo sets the user repository
func ChatWithUserRepo(repo *repository.UserRepository) ChatOption {
	return func(s *ChatService) { s.userRepo = repo }
}

// ChatWithPipeline sets the answer pipeline
func ChatWithPipeline(p *PipelineService) ChatOption {
	return func(s *ChatService) { s.pipeline = p }
}

// ChatWithInvoker sets the model invoker used for titles and summaries
func ChatWithInvoker(invoker ModelInvoker) ChatOption {
	return func(s *ChatService) { s.invoker = invoker }
}

// ChatWithPrompts sets the prompt set
func ChatWithPrompts(prompts PromptSet) ChatOption {
	return func(s *ChatService) { s.prompts = prompts }
}

// ChatWithSummaryModel sets the model used for titles and summaries
func ChatWithSummaryModel(model string) ChatOption {
	return func(s *ChatService) { s.summaryModel = model }
}

// NewChatService creates a new chat service
func NewChatService(opts ...ChatOption) *ChatService {
	s := &ChatService{
		prompts:      DefaultPrompts(),
		summaryModel: "gemini-2.5-pro",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ChatResponse is the result of handling one user message
type ChatResponse struct {
	ConversationID uuid.UUID             `json:"conversation_id"`
	Reply          string                `json:"reply"`
	Sources        models.MessageSources `json:"sources"`
	History        []*models.Message     `json:"history"`
}

// HandleMessage answers a user message inside a conversation, creating the
// conversation first when no ID is given
func (s *ChatService) HandleMessage(ctx context.Context, userID uuid.UUID, conversationID *uuid.UUID, text string) (*ChatResponse, error) {
	var conv *models.Conversation
	var history []models.ChatTurn
	var err error

	if conversationID != nil {
		conv, err = s.convRepo.GetByID(ctx, *conversationID, userID)
		if err != nil {
			return nil, ErrConversationAccess
		}

		messages, err := s.convRepo.ListMessages(ctx, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load conversation history: %w", err)
		}
		history = historyTurns(messages)
	} else {
		title := s.GenerateConversationTitle(ctx, text)
		conv, err = s.convRepo.Create(ctx, userID, title)
		if err != nil {
			return nil, fmt.Errorf("failed to create conversation: %w", err)
		}
	}

	answerOpts, err := s.answerOptions(ctx, userID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	answer, err := s.pipeline.AnswerMedicalQuery(ctx, text, history, answerOpts...)
	if err != nil {
		return nil, err
	}
	latency := float64(time.Since(start).Milliseconds())

	_, botMsg, err := s.convRepo.AppendExchange(ctx, conv.ID, text, answer.Answer, answer.Sources)
	if err != nil {
		return nil, fmt.Errorf("failed to store messages: %w", err)
	}

	s.recordMetric(ctx, conv.ID, botMsg.ID, latency, text, answer.Answer)

	messages, err := s.convRepo.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation history: %w", err)
	}

	return &ChatResponse{
		ConversationID: conv.ID,
		Reply:          answer.Answer,
		Sources:        answer.Sources,
		History:        messages,
	}, nil
}

// answerOptions applies the user's active custom extractor prompt when the
// user's role allows overrides
func (s *ChatService) answerOptions(ctx context.Context, userID uuid.UUID) ([]AnswerOption, error) {
	if s.promptRepo == nil || s.userRepo == nil {
		return nil, nil
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !user.CanOverridePrompts() {
		return nil, nil
	}

	prompt, err := s.promptRepo.GetActive(ctx, userID)
	if errors.Is(err, repository.ErrPromptNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load custom prompt: %w", err)
	}

	log.Printf("Using custom extractor prompt v%d for user %s", prompt.Version, userID)
	return []AnswerOption{WithExtractorPrompt(prompt.PromptText)}, nil
}

// GenerateConversationTitle asks the summary model for a short title based
// on the first message. Falls back to a static title on any failure.
func (s *ChatService) GenerateConversationTitle(ctx context.Context, firstMessage string) string {
	if s.invoker == nil {
		return DefaultConversationTitle
	}

	// The summary model rejects explicit temperatures; none is set
	messages := []ChatMessage{
		{Role: RoleUser, Content: s.prompts.FormatTitle(firstMessage)},
	}
	raw, err := s.invoker.Invoke(ctx, s.summaryModel, messages)
	if err != nil {
		log.Printf("Title generation failed: %v", err)
		return DefaultConversationTitle
	}

	title := strings.Trim(strings.TrimSpace(raw), `"'`)
	if title == "" {
		return DefaultConversationTitle
	}
	return title
}

// SummarizeConversation produces a narrative summary of a conversation
func (s *ChatService) SummarizeConversation(ctx context.Context, userID, conversationID uuid.UUID) (string, error) {
	conv, err := s.convRepo.GetByID(ctx, conversationID, userID)
	if err != nil {
		return "", ErrConversationAccess
	}

	messages, err := s.convRepo.ListMessages(ctx, conv.ID)
	if err != nil {
		return "", fmt.Errorf("failed to load conversation history: %w", err)
	}
	if len(messages) == 0 {
		return "", errors.New("conversation has no messages to summarize")
	}

	var transcript strings.Builder
	for _, m := range messages {
		label := "User"
		if m.Sender == models.SenderBot {
			label = "Assistant"
		}
		fmt.Fprintf(&transcript, "%s: %s\n", label, m.Text)
	}

	// The summary model rejects explicit temperatures; none is set
	summary, err := s.invoker.Invoke(ctx, s.summaryModel, []ChatMessage{
		{Role: RoleSystem, Content: s.prompts.Summary},
		{Role: RoleUser, Content: transcript.String()},
	})
	if err != nil {
		return "", fmt.Errorf("failed to summarize conversation: %w", err)
	}
	return strings.TrimSpace(summary), nil
}

// recordMetric stores latency and cost data for one answered query. Failures
// are logged and do not affect the chat response.
func (s *ChatService) recordMetric(ctx context.Context, conversationID, messageID uuid.UUID, latencyMs float64, query, answer string) {
	if s.metricRepo == nil {
		return
	}

	model := s.pipeline.PathwayModel()
	tokens := estimateTokens(query) + estimateTokens(answer)
	metric := &models.QueryMetric{
		ConversationID: conversationID,
		MessageID:      messageID,
		LatencyMs:      latencyMs,
		TokenEstimate:  tokens,
		Model:          model,
		CostUSD:        calculateQueryCost(model, tokens),
	}
	if err := s.metricRepo.Create(ctx, metric); err != nil {
		log.Printf("Failed to record query metric: %v", err)
	}
}

// historyTurns converts stored messages into pipeline chat turns
func historyTurns(messages []*models.Message) []models.ChatTurn {
	turns := make([]models.ChatTurn, 0, len(messages))
	for _, m := range messages {
		role := RoleUser
		if m.Sender == models.SenderBot {
			role = RoleAssistant
		}
		turns = append(turns, models.ChatTurn{Role: role, Content: m.Text})
	}
	return turns
}

// estimateTokens approximates token usage at four characters per token
func estimateTokens(text string) int {
	return len(text) / 4
}

// calculateQueryCost estimates spend for a query, treating half the tokens
// as input and half as output
func calculateQueryCost(model string, tokens int) float64 {
	pricing, ok := modelPricing[model]
	if !ok {
		return 0
	}
	half := float64(tokens) / 2
	return (half*pricing[0] + half*pricing[1]) / 1_000_000
}
