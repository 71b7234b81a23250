package service

import (
	"context"
	"errors"
	"sync"

	"github.com/Strob0t/CoachForge/internal/config"
	"github.com/Strob0t/CoachForge/internal/domain/envelope"
	"github.com/Strob0t/CoachForge/internal/domain/turn"
	"github.com/Strob0t/CoachForge/internal/port/worker"
)

var errUnreachable = errors.New("connection refused")

// workerFunc answers one request with a reply payload.
type workerFunc func(msg *envelope.Message) (any, error)

// fakeCaller routes calls by service name and records every request.
type fakeCaller struct {
	mu       sync.Mutex
	handlers map[string]workerFunc
	calls    []*envelope.Message
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{handlers: map[string]workerFunc{}}
}

func (f *fakeCaller) handle(service string, h workerFunc) *fakeCaller {
	f.handlers[service] = h
	return f
}

func (f *fakeCaller) Call(_ context.Context, ep worker.Endpoint, msg *envelope.Message) (*envelope.Message, error) {
	f.mu.Lock()
	f.calls = append(f.calls, msg)
	h := f.handlers[ep.Name]
	f.mu.Unlock()

	if h == nil {
		return nil, errUnreachable
	}
	payload, err := h(msg)
	if err != nil {
		return nil, err
	}
	return msg.NewReply(ep.Name, payload)
}

func (f *fakeCaller) callsTo(service string) []*envelope.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*envelope.Message
	for _, m := range f.calls {
		if m.Receiver == service {
			out = append(out, m)
		}
	}
	return out
}

func testServices() config.Services {
	return config.Services{
		Mood:      "http://mood.test/mcp",
		Brain:     "http://brain.test/mcp",
		Speech:    "http://speech.test/mcp",
		Knowledge: "http://knowledge.test/mcp",
		Vision:    "http://vision.test/mcp",
		Memory:    "http://memory.test/mcp",
		Manager:   "http://manager.test/mcp",
	}
}

func okReply(task string) envelope.Reply {
	return envelope.Reply{Status: envelope.StatusOK, Task: task}
}

func failWith(message string) workerFunc {
	return func(*envelope.Message) (any, error) {
		return envelope.ErrorReply("%s", message), nil
	}
}

func unreachable(*envelope.Message) (any, error) {
	return nil, errUnreachable
}

func moodWorker(mood, valence, energy string, score float64) workerFunc {
	return func(*envelope.Message) (any, error) {
		return envelope.MoodReply{
			Reply:           okReply(envelope.TaskAnalyzeMood),
			Mood:            mood,
			Score:           score,
			Valence:         valence,
			Energy:          energy,
			MatchedKeywords: map[string][]string{"fatigue": {"épuisé"}},
		}, nil
	}
}

// echoCoach answers with the user input it received.
func echoCoach(msg *envelope.Message) (any, error) {
	req, err := envelope.Decode[envelope.CoachResponse](msg)
	if err != nil {
		return nil, err
	}
	return envelope.CoachReply{
		Reply:  okReply(envelope.TaskCoachResponse),
		Answer: "coach: " + req.UserInput,
	}, nil
}

func speechWorker(text string) workerFunc {
	return func(msg *envelope.Message) (any, error) {
		req, err := envelope.Decode[envelope.TranscribeAudio](msg)
		if err != nil {
			return nil, err
		}
		return envelope.TranscribeReply{
			Reply: okReply(envelope.TaskTranscribeAudio),
			Transcription: turn.Transcription{
				Agent:      "speech_to_text",
				InputFile:  req.AudioPath,
				OutputFile: req.AudioPath + ".txt",
				OutputText: text,
			},
		}, nil
	}
}

func knowledgeWorker(result any) workerFunc {
	return func(msg *envelope.Message) (any, error) {
		req, err := envelope.Decode[envelope.NutritionSuggestions](msg)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"status": "ok",
			"task":   envelope.TaskNutritionSuggestions,
			"goal":   req.Goal,
			"result": result,
		}, nil
	}
}

func visionWorker(msg *envelope.Message) (any, error) {
	req, err := envelope.Decode[envelope.AnalyzeMealImage](msg)
	if err != nil {
		return nil, err
	}
	return envelope.VisionReply{
		Reply:     okReply(envelope.TaskAnalyzeMealImage),
		ImagePath: req.ImagePath,
		Result:    turn.VisionResult{"dish": "couscous", "kcal": 650.0},
	}, nil
}

// staticRouter returns a fixed decision.
type staticRouter struct {
	decision RouteDecision
}

func (r staticRouter) Route(context.Context, RouteInput) RouteDecision {
	return r.decision
}

func raw(service, command, text string) turn.RawCommand {
	return turn.RawCommand{Service: service, Command: command, Text: turn.StringPtr(text)}
}
