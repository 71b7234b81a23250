package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Strob0t/CoachForge/internal/config"
	"github.com/Strob0t/CoachForge/internal/domain/envelope"
	"github.com/Strob0t/CoachForge/internal/domain/turn"
	"github.com/Strob0t/CoachForge/internal/port/worker"
)

// DefaultHistoryLimit is the number of interactions requested for coaching.
const DefaultHistoryLimit = 5

var (
	errEmptyAnswer   = errors.New("empty answer")
	errMissingResult = errors.New("missing result")
	errNoUser        = errors.New("user_id is required")
)

var valenceToMental = map[string]turn.Level{
	"negative": turn.LevelLow,
	"positive": turn.LevelHigh,
}

var energyToPhysical = map[string]turn.Level{
	"low":       turn.LevelLow,
	"very_low":  turn.LevelLow,
	"high":      turn.LevelHigh,
	"very_high": turn.LevelHigh,
}

// MentalState maps a mood valence to a mental state. Unknown or empty values
// map to medium.
func MentalState(valence string) turn.Level {
	return lookupLevel(valenceToMental, valence)
}

// PhysicalState maps a mood energy to a physical state. Unknown or empty
// values map to medium.
func PhysicalState(energy string) turn.Level {
	return lookupLevel(energyToPhysical, energy)
}

func lookupLevel(table map[string]turn.Level, v string) turn.Level {
	if l, ok := table[strings.ToLower(strings.TrimSpace(v))]; ok {
		return l
	}
	return turn.LevelMedium
}

// Workers holds the endpoints of the worker services and builds their adapters.
type Workers struct {
	caller    worker.Caller
	mood      worker.Endpoint
	brain     worker.Endpoint
	speech    worker.Endpoint
	knowledge worker.Endpoint
	vision    worker.Endpoint
	memory    worker.Endpoint
}

// NewWorkers creates Workers for the configured service URLs.
func NewWorkers(caller worker.Caller, svc config.Services) *Workers {
	return &Workers{
		caller:    caller,
		mood:      worker.Endpoint{Name: envelope.ServiceMood, URL: svc.Mood},
		brain:     worker.Endpoint{Name: envelope.ServiceBrain, URL: svc.Brain},
		speech:    worker.Endpoint{Name: envelope.ServiceSpeech, URL: svc.Speech},
		knowledge: worker.Endpoint{Name: envelope.ServiceKnowledge, URL: svc.Knowledge},
		vision:    worker.Endpoint{Name: envelope.ServiceVision, URL: svc.Vision},
		memory:    worker.Endpoint{Name: envelope.ServiceMemory, URL: svc.Memory},
	}
}

// NewDefaultRegistry registers an adapter for every (capability, task) pair
// the router may emit, aliases included.
func NewDefaultRegistry(w *Workers) (*Registry, error) {
	r := NewRegistry()
	for _, b := range []struct {
		capability string
		task       string
		kind       turn.Kind
		adapter    Adapter
	}{
		{turn.CapabilitySpeech, turn.TaskTranscribeAudio, turn.KindTranscription, w.transcribe},
		{turn.CapabilityMood, turn.TaskAnalyzeMood, turn.KindMood, w.analyzeMood},
		{turn.CapabilityKnowledge, turn.TaskNutritionSuggestions, turn.KindNutrition, w.nutrition},
		{turn.CapabilityNutrition, turn.TaskAnalyzeMeal, turn.KindNutrition, w.nutrition},
		{turn.CapabilityVision, turn.TaskAnalyzeImage, turn.KindVision, w.analyzeImage},
		{turn.CapabilityVision, turn.TaskAnalyzeDietImage, turn.KindVision, w.analyzeImage},
		{turn.CapabilityHistory, turn.TaskGetHistory, turn.KindHistory, w.history},
		{turn.CapabilityCoaching, turn.TaskCoachResponse, turn.KindCoaching, w.coach},
	} {
		if err := r.Register(b.capability, b.task, b.kind, b.adapter); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (w *Workers) call(ctx context.Context, ep worker.Endpoint, payload any, tc *TurnContext) (*envelope.Message, error) {
	if ep.URL == "" {
		return nil, fmt.Errorf("%s: no endpoint configured", ep.Name)
	}
	msg, err := envelope.NewRequest(envelope.ServiceOrchestrator, ep.Name, payload, envelope.Context{UserID: tc.UserID})
	if err != nil {
		return nil, err
	}
	return w.caller.Call(ctx, ep, msg)
}

func (w *Workers) analyzeMood(ctx context.Context, cmd turn.Command, tc *TurnContext) (*Outcome, error) {
	resp, err := w.call(ctx, w.mood, envelope.AnalyzeMood{
		Task:   envelope.TaskAnalyzeMood,
		Text:   cmd.Text,
		UserID: tc.UserID,
	}, tc)
	if err != nil {
		return nil, err
	}
	reply, err := envelope.DecodeReply[envelope.MoodReply](resp)
	if err != nil {
		return nil, err
	}
	return &Outcome{Mood: normalizeMood(reply)}, nil
}

// normalizeMood derives the mood state from the worker's raw classification.
// The score is the worker's confidence in the label, clamped to [0,1].
func normalizeMood(r envelope.MoodReply) *turn.MoodState {
	score := r.Score
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	kw := r.MatchedKeywords
	if kw == nil {
		kw = map[string][]string{}
	}
	return &turn.MoodState{
		MoodLabel:       r.Mood,
		Score:           score,
		Valence:         r.Valence,
		Energy:          r.Energy,
		PhysicalState:   PhysicalState(r.Energy),
		MentalState:     MentalState(r.Valence),
		MatchedKeywords: kw,
	}
}

func (w *Workers) coach(ctx context.Context, cmd turn.Command, tc *TurnContext) (*Outcome, error) {
	req := envelope.CoachResponse{
		Task:            envelope.TaskCoachResponse,
		UserInput:       cmd.Text,
		History:         tc.History,
		MoodState:       tc.Mood,
		ExpertKnowledge: []any{},
		VisionResult:    tc.Vision,
	}
	if req.History == nil {
		req.History = []turn.HistoryEntry{}
	}
	if tc.Mood != nil {
		req.Mood = tc.Mood.MoodLabel
	}
	if tc.Nutrition != nil {
		req.ExpertKnowledge = tc.Nutrition
	}

	resp, err := w.call(ctx, w.brain, req, tc)
	if err != nil {
		return nil, err
	}
	reply, err := envelope.DecodeReply[envelope.CoachReply](resp)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(reply.Answer) == "" {
		return nil, errEmptyAnswer
	}
	return &Outcome{Answer: turn.StringPtr(reply.Answer)}, nil
}

func (w *Workers) transcribe(ctx context.Context, cmd turn.Command, tc *TurnContext) (*Outcome, error) {
	resp, err := w.call(ctx, w.speech, envelope.TranscribeAudio{
		Task:      envelope.TaskTranscribeAudio,
		AudioPath: cmd.Text,
	}, tc)
	if err != nil {
		return nil, err
	}
	reply, err := envelope.DecodeReply[envelope.TranscribeReply](resp)
	if err != nil {
		return nil, err
	}
	t := reply.Transcription
	return &Outcome{Transcription: &t}, nil
}

func (w *Workers) nutrition(ctx context.Context, cmd turn.Command, tc *TurnContext) (*Outcome, error) {
	resp, err := w.call(ctx, w.knowledge, envelope.NutritionSuggestions{
		Task: envelope.TaskNutritionSuggestions,
		Goal: cmd.Text,
	}, tc)
	if err != nil {
		return nil, err
	}
	reply, err := envelope.DecodeReply[envelope.NutritionReply](resp)
	if err != nil {
		return nil, err
	}
	res, err := decodeNutrition(reply.Result)
	if err != nil {
		return nil, err
	}
	if res.Goal == "" {
		res.Goal = reply.Goal
	}
	return &Outcome{Nutrition: res}, nil
}

// decodeNutrition accepts the result as an object or as a JSON string that
// holds the object.
func decodeNutrition(raw json.RawMessage) (*turn.NutritionResult, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, errMissingResult
	}
	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, fmt.Errorf("decode nutrition result: %w", err)
		}
		raw = []byte(extractJSON(inner))
	}
	var res turn.NutritionResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode nutrition result: %w", err)
	}
	return &res, nil
}

func (w *Workers) analyzeImage(ctx context.Context, cmd turn.Command, tc *TurnContext) (*Outcome, error) {
	resp, err := w.call(ctx, w.vision, envelope.AnalyzeMealImage{
		Task:      envelope.TaskAnalyzeMealImage,
		ImagePath: cmd.Text,
	}, tc)
	if err != nil {
		return nil, err
	}
	reply, err := envelope.DecodeReply[envelope.VisionReply](resp)
	if err != nil {
		return nil, err
	}
	if reply.Result == nil {
		return nil, errMissingResult
	}
	return &Outcome{Vision: reply.Result}, nil
}

func (w *Workers) history(ctx context.Context, _ turn.Command, tc *TurnContext) (*Outcome, error) {
	if tc.UserID == "" {
		return nil, errNoUser
	}
	resp, err := w.call(ctx, w.memory, envelope.GetHistory{
		Task:   envelope.TaskGetHistory,
		UserID: tc.UserID,
		Limit:  DefaultHistoryLimit,
	}, tc)
	if err != nil {
		return nil, err
	}
	reply, err := envelope.DecodeReply[envelope.HistoryReply](resp)
	if err != nil {
		return nil, err
	}
	h := reply.History
	if h == nil {
		h = []turn.HistoryEntry{}
	}
	return &Outcome{History: h}, nil
}
