package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/Strob0t/CoachForge/internal/adapter/litellm"
	cfotel "github.com/Strob0t/CoachForge/internal/adapter/otel"
	"github.com/Strob0t/CoachForge/internal/config"
	"github.com/Strob0t/CoachForge/internal/domain/turn"
	"github.com/Strob0t/CoachForge/internal/port/cache"
)

//go:embed templates/router_prompt.tmpl
var routerPromptTmpl string

var routerTmpl = template.Must(template.New("router_prompt").Parse(routerPromptTmpl))

// errNoRoutingModel marks keyword-only routing, which is configured, not failed.
var errNoRoutingModel = errors.New("no routing model configured")

const routerSystemPrompt = "Tu es un routeur de services pour une application de coach sportif. " +
	"Tu dois toujours répondre avec du JSON STRICTEMENT valide."

// completer is the subset of the LiteLLM client the router needs.
type completer interface {
	ChatCompletion(ctx context.Context, req litellm.ChatCompletionRequest) (*litellm.ChatCompletionResponse, error)
}

// RouteInput is the text and attachments of one turn as seen by the router.
type RouteInput struct {
	Text      string
	AudioPath string
	UserID    string
}

// RouteDecision is the ordered command list for one turn. LLMError is set
// when the generative path failed and only the keyword table contributed.
type RouteDecision struct {
	Services []turn.RawCommand
	LLMError string
}

// Router decides which workers a turn needs. Implementations never fail:
// every error degrades to a smaller decision.
type Router interface {
	Route(ctx context.Context, in RouteInput) RouteDecision
}

type routerPromptData struct {
	UserText string
	HasAudio bool
}

// RouterService combines a generative routing call with the keyword table.
type RouterService struct {
	llm     completer
	cfg     config.Router
	cache   cache.Cache
	metrics *cfotel.Metrics
}

// NewRouterService creates a RouterService. llm and c may be nil: without an
// LLM only keywords route, without a cache every decision calls the LLM.
func NewRouterService(llm completer, cfg config.Router, c cache.Cache) *RouterService {
	return &RouterService{llm: llm, cfg: cfg, cache: c}
}

// SetMetrics enables fallback counting.
func (s *RouterService) SetMetrics(m *cfotel.Metrics) {
	s.metrics = m
}

// Route returns the commands for in. A speech command comes first when audio
// is attached. For non-empty text the decision always holds a coaching entry.
func (s *RouterService) Route(ctx context.Context, in RouteInput) RouteDecision {
	var d RouteDecision
	if in.AudioPath != "" {
		d.Services = append(d.Services, turn.RawCommand{
			Service: turn.CapabilitySpeech,
			Command: turn.TaskTranscribeAudio,
			Text:    turn.StringPtr(in.AudioPath),
		})
	}

	if strings.TrimSpace(in.Text) == "" {
		return d
	}

	primary, err := s.decide(ctx, in.Text, in.AudioPath != "")
	switch {
	case errors.Is(err, errNoRoutingModel):
		d.LLMError = err.Error()
	case err != nil:
		d.LLMError = err.Error()
		s.metrics.RouterFellBack(ctx, "llm_error")
		slog.Warn("router: generative path failed, using keywords only",
			"error", err,
			"user_id", in.UserID,
		)
	}

	d.Services = mergeCommands(append(d.Services, primary...), matchKeywords(in.Text))
	d.Services = ensureCoaching(d.Services, in.Text)
	return d
}

// decide runs the generative path, consulting the decision cache first.
func (s *RouterService) decide(ctx context.Context, text string, hasAudio bool) ([]turn.RawCommand, error) {
	if s.llm == nil {
		return nil, errNoRoutingModel
	}

	key := routeCacheKey(text, hasAudio)
	if cmds, ok := s.cached(ctx, key); ok {
		return withDefaultText(cmds, text), nil
	}

	var buf bytes.Buffer
	if err := routerTmpl.Execute(&buf, routerPromptData{
		UserText: sanitizePromptInput(text),
		HasAudio: hasAudio,
	}); err != nil {
		return nil, fmt.Errorf("execute router template: %w", err)
	}

	resp, err := s.llm.ChatCompletion(ctx, litellm.ChatCompletionRequest{
		Model: s.cfg.Model,
		Messages: []litellm.ChatMessage{
			{Role: "system", Content: routerSystemPrompt},
			{Role: "user", Content: buf.String()},
		},
		Temperature:    s.cfg.Temperature,
		MaxTokens:      s.cfg.MaxTokens,
		ResponseFormat: &litellm.ResponseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("router LLM call: %w", err)
	}

	cmds, err := parseRouterReply(resp.Content)
	if err != nil {
		slog.Warn("router: failed to parse LLM response",
			"error", err,
			"content", truncate(resp.Content, 200),
		)
		return nil, err
	}

	s.store(ctx, key, cmds)
	return withDefaultText(cmds, text), nil
}

func (s *RouterService) cached(ctx context.Context, key string) ([]turn.RawCommand, bool) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return nil, false
	}
	data, ok, err := s.cache.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var cmds []turn.RawCommand
	if err := json.Unmarshal(data, &cmds); err != nil {
		return nil, false
	}
	return cmds, true
}

func (s *RouterService) store(ctx context.Context, key string, cmds []turn.RawCommand) {
	if s.cache == nil || s.cfg.CacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(cmds)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cfg.CacheTTL); err != nil {
		slog.Debug("router: cache set failed", "error", err)
	}
}

// routeCacheKey keys a decision on the lowercased, whitespace-collapsed text.
func routeCacheKey(text string, hasAudio bool) string {
	norm := strings.Join(strings.Fields(strings.ToLower(text)), " ")
	if hasAudio {
		norm = "audio\x00" + norm
	}
	sum := sha256.Sum256([]byte(norm))
	return "route:" + hex.EncodeToString(sum[:])
}

// parseRouterReply extracts the services list. Entries that are not objects
// or lack service or command are dropped.
func parseRouterReply(content string) ([]turn.RawCommand, error) {
	var reply struct {
		Services []json.RawMessage `json:"services"`
	}
	if err := json.Unmarshal([]byte(extractJSON(content)), &reply); err != nil {
		return nil, fmt.Errorf("unmarshal router reply: %w", err)
	}

	cmds := make([]turn.RawCommand, 0, len(reply.Services))
	for _, raw := range reply.Services {
		var c turn.RawCommand
		if err := json.Unmarshal(raw, &c); err != nil {
			continue
		}
		if strings.TrimSpace(c.Service) == "" || strings.TrimSpace(c.Command) == "" {
			continue
		}
		cmds = append(cmds, c)
	}
	return cmds, nil
}

// withDefaultText fills entries without text with the user text.
func withDefaultText(cmds []turn.RawCommand, text string) []turn.RawCommand {
	out := make([]turn.RawCommand, len(cmds))
	for i, c := range cmds {
		if c.Text == nil {
			c.Text = turn.StringPtr(text)
		}
		out[i] = c
	}
	return out
}
