package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pathwaymed-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateConversationTitle(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		err      error
		expected string
	}{
		{name: "plain title", raw: "Child Fever Management", expected: "Child Fever Management"},
		{name: "double quotes stripped", raw: `"Malaria Dosing Question"`, expected: "Malaria Dosing Question"},
		{name: "single quotes stripped", raw: "'Cough Assessment'", expected: "Cough Assessment"},
		{name: "whitespace trimmed", raw: "  Rash Follow-up \n", expected: "Rash Follow-up"},
		{name: "model failure falls back", err: errors.New("boom"), expected: DefaultConversationTitle},
		{name: "empty output falls back", raw: `""`, expected: DefaultConversationTitle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			invoker := &scriptedInvoker{}
			invoker.handle = func(model string, messages []ChatMessage) (string, error) {
				assert.Equal(t, "summary-model", model)
				require.Len(t, messages, 1)
				return tt.raw, tt.err
			}

			svc := NewChatService(
				ChatWithInvoker(invoker),
				ChatWithSummaryModel("summary-model"),
			)
			assert.Equal(t, tt.expected, svc.GenerateConversationTitle(context.Background(), "my child has a fever"))
		})
	}
}

func TestGenerateConversationTitleNoInvoker(t *testing.T) {
	svc := NewChatService()
	assert.Equal(t, DefaultConversationTitle, svc.GenerateConversationTitle(context.Background(), "anything"))
}

func TestHistoryTurns(t *testing.T) {
	messages := []*models.Message{
		{Sender: models.SenderUser, Text: "hi"},
		{Sender: models.SenderBot, Text: "hello"},
		{Sender: models.SenderUser, Text: "question"},
	}

	turns := historyTurns(messages)
	require.Len(t, turns, 3)
	assert.Equal(t, models.ChatTurn{Role: RoleUser, Content: "hi"}, turns[0])
	assert.Equal(t, models.ChatTurn{Role: RoleAssistant, Content: "hello"}, turns[1])
	assert.Equal(t, models.ChatTurn{Role: RoleUser, Content: "question"}, turns[2])
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, estimateTokens(""))
	assert.Equal(t, 1, estimateTokens("abcd"))
	assert.Equal(t, 25, estimateTokens(strings.Repeat("x", 100)))
}

func TestCalculateQueryCost(t *testing.T) {
	// 1M tokens on gemini-2.0-flash: half in at $0.10, half out at $0.40
	cost := calculateQueryCost("gemini-2.0-flash", 1_000_000)
	assert.InDelta(t, 0.25, cost, 1e-9)

	assert.Zero(t, calculateQueryCost("unknown-model", 1_000_000))
	assert.Zero(t, calculateQueryCost("gemini-2.0-flash", 0))
}
