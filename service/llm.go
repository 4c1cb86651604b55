package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
)

// Message roles accepted by the invoker
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage is one role-tagged message in a model call
type ChatMessage struct {
	Role    string
	Content string
}

var (
	ErrRateLimited     = errors.New("model service rate limit exceeded")
	ErrModelInvocation = errors.New("model invocation failed")
)

const (
	defaultMaxRetries    = 3
	defaultBackoffFactor = 2.0
)

// InvokeOption configures a single model call
type InvokeOption func(*invokeConfig)

type invokeConfig struct {
	temperature *float32
}

// WithTemperature sets the sampling temperature. When omitted the model's
// default applies; the synthesis model rejects explicit temperatures, so
// callers must not set one for it.
func WithTemperature(t float32) InvokeOption {
	return func(c *invokeConfig) {
		c.temperature = &t
	}
}

// ModelInvoker sends a message sequence to a language model and returns the
// generated text. Implementations must be safe for concurrent use.
type ModelInvoker interface {
	Invoke(ctx context.Context, model string, messages []ChatMessage, opts ...InvokeOption) (string, error)
}

// GeminiInvoker implements ModelInvoker over the Gemini API. Rate-limit
// responses are retried with exponential backoff; every other failure is
// surfaced immediately.
type GeminiInvoker struct {
	client        *genai.Client
	maxRetries    int
	backoffFactor float64
	sleep         func(time.Duration)
	send          sendFunc
}

// sendFunc performs one model call attempt
type sendFunc func(ctx context.Context, model string, cfg invokeConfig, system string, prior []ChatMessage, last ChatMessage) (string, error)

// GeminiInvokerOption is a functional option for GeminiInvoker
type GeminiInvokerOption func(*GeminiInvoker)

// GeminiWithMaxRetries sets the rate-limit retry budget
func GeminiWithMaxRetries(n int) GeminiInvokerOption {
	return func(g *GeminiInvoker) {
		g.maxRetries = n
	}
}

// GeminiWithBackoffFactor sets the exponential backoff base
func GeminiWithBackoffFactor(f float64) GeminiInvokerOption {
	return func(g *GeminiInvoker) {
		g.backoffFactor = f
	}
}

// GeminiWithSleep replaces the backoff sleep function (used in tests)
func GeminiWithSleep(fn func(time.Duration)) GeminiInvokerOption {
	return func(g *GeminiInvoker) {
		g.sleep = fn
	}
}

// NewGeminiInvoker creates a new Gemini-backed invoker
func NewGeminiInvoker(client *genai.Client, opts ...GeminiInvokerOption) *GeminiInvoker {
	g := &GeminiInvoker{
		client:        client,
		maxRetries:    defaultMaxRetries,
		backoffFactor: defaultBackoffFactor,
		sleep:         time.Sleep,
	}
	g.send = g.sendGemini
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Invoke sends the message sequence to the named model. System messages are
// folded into the system instruction; the final message must be a user turn.
func (g *GeminiInvoker) Invoke(ctx context.Context, model string, messages []ChatMessage, opts ...InvokeOption) (string, error) {
	var cfg invokeConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	system, turns, err := splitMessages(messages)
	if err != nil {
		return "", err
	}
	last := turns[len(turns)-1]
	priorTurns := turns[:len(turns)-1]

	for attempt := 1; attempt <= g.maxRetries; attempt++ {
		text, err := g.send(ctx, model, cfg, system, priorTurns, last)
		if err == nil {
			return text, nil
		}

		if !isRateLimit(err) {
			return "", fmt.Errorf("%w: %v", ErrModelInvocation, err)
		}
		if attempt == g.maxRetries {
			log.Printf("Rate limit reached; no more retries left.")
			return "", fmt.Errorf("%w: %v", ErrRateLimited, err)
		}

		wait := backoffDelay(g.backoffFactor, attempt)
		log.Printf("Rate limited. Retrying in %.1fs (attempt %d/%d)", wait.Seconds(), attempt, g.maxRetries)
		g.sleep(wait)
	}

	return "", ErrRateLimited
}

// sendGemini performs one attempt against the Gemini API. System text goes
// into the system instruction; prior turns become chat history.
func (g *GeminiInvoker) sendGemini(ctx context.Context, model string, cfg invokeConfig, system string, prior []ChatMessage, last ChatMessage) (string, error) {
	if g.client == nil {
		return "", errors.New("gemini client not set")
	}

	m := g.client.GenerativeModel(model)
	if system != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(system)},
		}
	}
	if cfg.temperature != nil {
		m.SetTemperature(*cfg.temperature)
	}

	cs := m.StartChat()
	cs.History = make([]*genai.Content, 0, len(prior))
	for _, t := range prior {
		role := "user"
		if t.Role == RoleAssistant {
			role = "model"
		}
		cs.History = append(cs.History, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(t.Content)},
		})
	}

	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return "", err
	}
	return textFromResponse(resp)
}

// backoffDelay returns the wait before the next retry: factor^(attempt-1)
// seconds
func backoffDelay(factor float64, attempt int) time.Duration {
	return time.Duration(math.Pow(factor, float64(attempt-1)) * float64(time.Second))
}

// splitMessages separates system messages from conversational turns and
// validates that the sequence ends with a user turn
func splitMessages(messages []ChatMessage) (string, []ChatMessage, error) {
	var system strings.Builder
	turns := make([]ChatMessage, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			if system.Len() > 0 {
				system.WriteString("\n\n")
			}
			system.WriteString(msg.Content)
		case RoleUser, RoleAssistant:
			turns = append(turns, msg)
		default:
			return "", nil, fmt.Errorf("unknown message role: %s", msg.Role)
		}
	}

	if len(turns) == 0 || turns[len(turns)-1].Role != RoleUser {
		return "", nil, errors.New("message sequence must end with a user turn")
	}

	return system.String(), turns, nil
}

func isRateLimit(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests
}

// textFromResponse concatenates the text parts of all candidates
func textFromResponse(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: model returned no candidates", ErrModelInvocation)
	}

	var out strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				out.WriteString(string(text))
			}
		}
	}

	if out.Len() == 0 {
		return "", fmt.Errorf("%w: model returned empty content", ErrModelInvocation)
	}
	return out.String(), nil
}

// parseModelJSON strictly decodes raw as a JSON object and plucks the
// expected keys. Malformed output never fails: every expected key comes back
// nil and the raw text is logged for diagnosis. Downstream stages treat an
// all-nil record as "no information".
func parseModelJSON(raw string, expectedKeys ...string) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(expectedKeys))

	var decoded map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		log.Printf("Failed to parse JSON from model response: %q", raw)
		for _, key := range expectedKeys {
			out[key] = nil
		}
		return out
	}

	for _, key := range expectedKeys {
		if v, ok := decoded[key]; ok && string(v) != "null" {
			out[key] = v
		} else {
			out[key] = nil
		}
	}
	return out
}

// jsonString decodes a raw JSON value into a string pointer. Null, absent,
// non-string, and empty values all come back nil.
func jsonString(raw json.RawMessage) *string {
	if raw == nil {
		return nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil
	}
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// jsonStringSlice decodes a raw JSON array of strings; nil on any failure
func jsonStringSlice(raw json.RawMessage) []string {
	if raw == nil {
		return nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}
