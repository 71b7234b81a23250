package envelope

import (
	"encoding/json"

	"github.com/Strob0t/CoachForge/internal/domain/turn"
)

// Wire task names.
const (
	TaskProcessUserInput     = "process-user-input"
	TaskRouteServices        = "route-services"
	TaskAnalyzeMood          = "analyze-mood"
	TaskCoachResponse        = "coach-response"
	TaskTranscribeAudio      = "transcribe-audio"
	TaskNutritionSuggestions = "nutrition-suggestions"
	TaskAnalyzeMealImage     = "analyze-meal-image"
	TaskSaveInteraction      = "save-interaction"
	TaskGetHistory           = "get-history"
)

// Logical service names used as sender and receiver.
const (
	ServiceInterface    = "agent_interface"
	ServiceOrchestrator = "orchestrator"
	ServiceManager      = "agent_manager"
	ServiceMood         = "agent_mood"
	ServiceBrain        = "agent_cerveau"
	ServiceSpeech       = "agent_speech"
	ServiceKnowledge    = "agent_knowledge"
	ServiceVision       = "agent_vision"
	ServiceMemory       = "agent_memory"
)

// ProcessUserInput is the orchestrator's inbound request.
type ProcessUserInput struct {
	Task      string `json:"task"`
	UserInput string `json:"user_input"`
	AudioPath string `json:"audio_path,omitempty"`
	ImagePath string `json:"image_path,omitempty"`
}

// TurnReply is the orchestrator's reply to ProcessUserInput.
type TurnReply struct {
	Reply
	UserID *string `json:"user_id"`
	turn.Result
}

// RouteServices asks the router which workers to call.
type RouteServices struct {
	Task      string `json:"task"`
	Text      string `json:"text"`
	AudioPath string `json:"audio_path,omitempty"`
}

// RouteReply carries the ordered router decision.
type RouteReply struct {
	Reply
	Services []turn.RawCommand `json:"services"`
	LLMError string            `json:"llm_error,omitempty"`
}

// AnalyzeMood is the mood worker request.
type AnalyzeMood struct {
	Task   string `json:"task"`
	Text   string `json:"text"`
	UserID string `json:"user_id,omitempty"`
}

// MoodReply is the mood worker's raw classification.
type MoodReply struct {
	Reply
	Mood            string              `json:"mood"`
	Score           float64             `json:"score"`
	Valence         string              `json:"valence"`
	Energy          string              `json:"energy"`
	MatchedKeywords map[string][]string `json:"matched_keywords"`
}

// CoachResponse is the brain worker request. ExpertKnowledge holds a
// *turn.NutritionResult, or an empty list when no suggestion is known.
type CoachResponse struct {
	Task            string              `json:"task"`
	UserInput       string              `json:"user_input"`
	History         []turn.HistoryEntry `json:"history"`
	MoodState       *turn.MoodState     `json:"mood_state,omitempty"`
	Mood            string              `json:"mood,omitempty"`
	ExpertKnowledge any                 `json:"expert_knowledge"`
	VisionResult    turn.VisionResult   `json:"vision_result,omitempty"`
}

// CoachReply carries the generated answer.
type CoachReply struct {
	Reply
	Answer string `json:"answer"`
}

// TranscribeAudio is the speech worker request.
type TranscribeAudio struct {
	Task      string `json:"task"`
	AudioPath string `json:"audio_path"`
}

// TranscribeReply is the speech worker's transcription.
type TranscribeReply struct {
	Reply
	turn.Transcription
}

// NutritionSuggestions is the knowledge worker request.
type NutritionSuggestions struct {
	Task string `json:"task"`
	Goal string `json:"goal"`
}

// NutritionReply carries the knowledge result. Result is either an object or
// a JSON-encoded string holding that object.
type NutritionReply struct {
	Reply
	Goal   string          `json:"goal"`
	Result json.RawMessage `json:"result"`
}

// AnalyzeMealImage is the vision worker request.
type AnalyzeMealImage struct {
	Task      string `json:"task"`
	ImagePath string `json:"image_path"`
}

// VisionReply carries the normalized vision analysis.
type VisionReply struct {
	Reply
	ImagePath string            `json:"image_path,omitempty"`
	Result    turn.VisionResult `json:"result"`
}

// SaveInteraction stores one utterance in the memory service.
type SaveInteraction struct {
	Task     string         `json:"task"`
	UserID   string         `json:"user_id"`
	Role     string         `json:"role"`
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SaveReply acknowledges SaveInteraction.
type SaveReply struct {
	Reply
	InteractionID int64 `json:"interaction_id"`
}

// GetHistory reads the most recent interactions of a user.
type GetHistory struct {
	Task   string `json:"task"`
	UserID string `json:"user_id"`
	Limit  int    `json:"limit,omitempty"`
}

// HistoryReply carries interactions, newest first.
type HistoryReply struct {
	Reply
	History []turn.HistoryEntry `json:"history"`
}
