package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	cfotel "github.com/Strob0t/CoachForge/internal/adapter/otel"
	"github.com/Strob0t/CoachForge/internal/adapter/ws"
	"github.com/Strob0t/CoachForge/internal/config"
	"github.com/Strob0t/CoachForge/internal/domain/turn"
	"github.com/Strob0t/CoachForge/internal/logger"
	"github.com/Strob0t/CoachForge/internal/port/broadcast"
	"github.com/Strob0t/CoachForge/internal/port/messagequeue"
)

// TurnInput is one user request to the orchestrator.
type TurnInput struct {
	UserID    string
	UserInput string
	AudioPath string
	ImagePath string
}

// CoachService runs user turns: it routes the input, executes the worker
// steps in dependency order and assembles the aggregate result.
type CoachService struct {
	router    Router
	registry  *Registry
	scheduler *Scheduler
	cfg       config.Orchestrator
	queue     messagequeue.Queue
	hub       broadcast.Broadcaster
	metrics   *cfotel.Metrics
}

// NewCoachService creates a CoachService.
func NewCoachService(router Router, registry *Registry, cfg config.Orchestrator) *CoachService {
	if cfg.MaxParallel < 1 {
		cfg.MaxParallel = 1
	}
	return &CoachService{
		router:    router,
		registry:  registry,
		scheduler: NewScheduler(cfg.ThreadVision),
		cfg:       cfg,
		queue:     messagequeue.Nop{},
		hub:       broadcast.Nop{},
	}
}

// SetQueue sets the queue turn events are published to.
func (s *CoachService) SetQueue(q messagequeue.Queue) {
	s.queue = q
}

// SetBroadcaster sets the live event sink.
func (s *CoachService) SetBroadcaster(b broadcast.Broadcaster) {
	s.hub = b
}

// SetMetrics enables turn metrics.
func (s *CoachService) SetMetrics(m *cfotel.Metrics) {
	s.metrics = m
}

// turnState is the mutable state of one turn. It is only touched between
// steps, never while a wave runs.
type turnState struct {
	tc          TurnContext
	result      turn.Result
	transcribed string
	steps       []string
}

// ProcessUserInput runs one turn. It never fails: every worker failure leaves
// the matching result field nil.
func (s *CoachService) ProcessUserInput(ctx context.Context, in TurnInput) turn.Completed {
	turnID := uuid.NewString()
	ctx = logger.WithTurnID(ctx, turnID)
	ctx, span := cfotel.StartTurnSpan(ctx, turnID, in.UserID)
	defer span.End()

	start := time.Now()
	s.metrics.TurnStarted(ctx)

	rctx, rspan := cfotel.StartRouteSpan(ctx, s.routerMode())
	decision := s.router.Route(rctx, RouteInput{
		Text:      in.UserInput,
		AudioPath: in.AudioPath,
		UserID:    in.UserID,
	})
	rspan.End()

	services := decision.Services
	if services == nil {
		services = []turn.RawCommand{}
	}
	st := &turnState{
		tc:     TurnContext{TurnID: turnID, UserID: in.UserID},
		result: turn.Result{CalledServices: services},
	}
	s.hub.BroadcastEvent(ctx, broadcast.EventTurnStarted, ws.TurnStartedEvent{
		TurnID:   turnID,
		UserID:   in.UserID,
		Services: services,
	})

	plan := s.scheduler.Plan(s.resolve(ctx, buildCommands(services, in)))

	for _, wave := range plan.Gather {
		if s.cfg.ParallelGather {
			s.runWave(ctx, st, wave)
			continue
		}
		for _, step := range wave {
			s.runWave(ctx, st, []Step{step})
		}
	}

	respond := plan.Respond
	if len(respond) == 0 {
		text := in.UserInput
		if st.transcribed != "" {
			text = st.transcribed
		}
		coach := turn.NewCommand(turn.CapabilityCoaching, turn.TaskCoachResponse, text)
		if strings.TrimSpace(text) != "" && s.registry.Has(coach.Key()) {
			respond = []Step{{Kind: turn.KindCoaching, Command: coach}}
		}
	}
	for _, step := range respond {
		s.runWave(ctx, st, []Step{step})
	}

	done := turn.Completed{
		TurnID:      turnID,
		UserID:      in.UserID,
		UserInput:   in.UserInput,
		Result:      st.result,
		CompletedAt: time.Now().UTC(),
	}
	if st.transcribed != "" {
		done.UserInput = st.transcribed
	}

	s.metrics.RecordTurn(ctx, len(st.steps), time.Since(start))
	s.hub.BroadcastEvent(ctx, broadcast.EventTurnCompleted, ws.TurnCompletedEvent{
		TurnID:      turnID,
		UserID:      in.UserID,
		Result:      done.Result,
		CompletedAt: done.CompletedAt,
	})
	s.publishCompleted(ctx, done, st.steps)

	slog.InfoContext(ctx, "turn completed",
		"user_id", in.UserID,
		"steps", len(st.steps),
		"has_answer", done.Result.CoachAnswer != nil,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return done
}

// RejectTask records a request whose task the orchestrator does not handle.
func (s *CoachService) RejectTask(ctx context.Context, userID, task string) {
	s.metrics.TurnRejected(ctx, task)
	data, err := json.Marshal(messagequeue.TurnFailedPayload{
		TurnID: uuid.NewString(),
		UserID: userID,
		Task:   task,
		Error:  "unknown task",
	})
	if err != nil {
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectTurnFailed, data); err != nil {
		slog.WarnContext(ctx, "publish turn failed event", "error", err)
	}
}

func (s *CoachService) routerMode() string {
	if _, ok := s.router.(*RemoteRouter); ok {
		return config.RouterRemote
	}
	return config.RouterLocal
}

// buildCommands normalizes the router output and applies the attachment
// rules: audio always gets a transcription step first, an image always gets
// a vision step last.
func buildCommands(raw []turn.RawCommand, in TurnInput) []turn.Command {
	cmds := make([]turn.Command, 0, len(raw)+2)
	for _, rc := range raw {
		if strings.TrimSpace(rc.Service) == "" || strings.TrimSpace(rc.Command) == "" {
			continue
		}
		text := in.UserInput
		if rc.Text != nil {
			text = *rc.Text
		}
		cmds = append(cmds, turn.NewCommand(rc.Service, rc.Command, text))
	}

	if in.AudioPath != "" {
		found := false
		for i := range cmds {
			if isTranscription(cmds[i]) {
				cmds[i].Text = in.AudioPath
				found = true
			}
		}
		if !found {
			speech := turn.NewCommand(turn.CapabilitySpeech, turn.TaskTranscribeAudio, in.AudioPath)
			cmds = append([]turn.Command{speech}, cmds...)
		}
	}

	if in.ImagePath != "" {
		cmds = append(cmds, turn.NewCommand(turn.CapabilityVision, turn.TaskAnalyzeImage, in.ImagePath))
	}
	return cmds
}

func isTranscription(c turn.Command) bool {
	return c.Capability == turn.CapabilitySpeech && c.Task == turn.TaskTranscribeAudio
}

// resolve binds commands to step kinds. Commands without an adapter are
// skipped. A kind runs once per turn: it keeps the position of its first
// command and the text of its last one.
func (s *CoachService) resolve(ctx context.Context, cmds []turn.Command) []Step {
	steps := make([]Step, 0, len(cmds))
	pos := make(map[turn.Kind]int, len(cmds))
	for _, c := range cmds {
		kind, ok := s.registry.Kind(c.Key())
		if !ok {
			slog.WarnContext(ctx, "skipping command without adapter",
				"capability", c.Capability,
				"task", c.Task,
			)
			continue
		}
		if i, dup := pos[kind]; dup {
			steps[i].Command.Text = c.Text
			continue
		}
		pos[kind] = len(steps)
		steps = append(steps, Step{Kind: kind, Command: c})
	}
	return steps
}

// runWave executes steps concurrently, bounded by max_parallel, and applies
// their outcomes in step order once all have returned.
func (s *CoachService) runWave(ctx context.Context, st *turnState, wave []Step) {
	for i := range wave {
		if st.transcribed != "" && s.scheduler.DependsOn(wave[i].Kind, turn.KindTranscription) {
			wave[i].Command.Text = st.transcribed
		}
	}

	outcomes := make([]*Outcome, len(wave))
	tc := st.tc
	if len(wave) == 1 {
		outcomes[0] = s.execute(ctx, &tc, wave[0])
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.cfg.MaxParallel)
		for i, step := range wave {
			g.Go(func() error {
				outcomes[i] = s.execute(gctx, &tc, step)
				return nil
			})
		}
		_ = g.Wait()
	}

	for i, step := range wave {
		st.steps = append(st.steps, step.Command.Key().String())
		if outcomes[i] != nil {
			st.apply(step.Kind, outcomes[i], s.cfg.ThreadVision)
		}
	}
}

func (s *CoachService) execute(ctx context.Context, tc *TurnContext, step Step) *Outcome {
	start := time.Now()
	out, err := s.registry.Execute(ctx, step.Command, tc)
	if err != nil {
		// Kinds come from the registry, so a missing adapter cannot happen here.
		slog.ErrorContext(ctx, "execute step", "step", step.Command.Key().String(), "error", err)
		return nil
	}
	s.hub.BroadcastEvent(ctx, broadcast.EventWorkerResult, ws.WorkerResultEvent{
		TurnID:     tc.TurnID,
		UserID:     tc.UserID,
		Step:       step.Command.Key().String(),
		OK:         out != nil,
		DurationMS: time.Since(start).Milliseconds(),
	})
	return out
}

// apply stores an outcome in the result and, for context kinds, in the turn
// context read by later steps.
func (st *turnState) apply(kind turn.Kind, out *Outcome, threadVision bool) {
	switch kind {
	case turn.KindTranscription:
		if out.Transcription == nil {
			return
		}
		st.result.SpeechTranscription = out.Transcription
		if strings.TrimSpace(out.Transcription.OutputText) != "" {
			st.transcribed = out.Transcription.OutputText
		}
	case turn.KindMood:
		st.result.MoodState = out.Mood
		st.tc.Mood = out.Mood
	case turn.KindNutrition:
		st.result.NutritionResult = out.Nutrition
		st.tc.Nutrition = out.Nutrition
	case turn.KindVision:
		st.result.VisionResult = out.Vision
		if threadVision {
			st.tc.Vision = out.Vision
		}
	case turn.KindHistory:
		st.result.HistoryResult = out.History
		st.tc.History = out.History
	case turn.KindCoaching:
		if out.Answer != nil {
			st.result.CoachAnswer = out.Answer
		}
	}
}

func (s *CoachService) publishCompleted(ctx context.Context, done turn.Completed, steps []string) {
	if steps == nil {
		steps = []string{}
	}
	data, err := json.Marshal(messagequeue.TurnCompletedPayload{
		TurnID:      done.TurnID,
		UserID:      done.UserID,
		UserInput:   done.UserInput,
		CoachAnswer: done.Result.CoachAnswer,
		Services:    steps,
		CompletedAt: done.CompletedAt,
	})
	if err != nil {
		slog.ErrorContext(ctx, "marshal turn completed event", "error", err)
		return
	}
	if err := s.queue.Publish(ctx, messagequeue.SubjectTurnCompleted, data); err != nil {
		slog.WarnContext(ctx, "publish turn completed event", "error", err)
	}
}
