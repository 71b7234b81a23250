package turn

import "time"

// Level is a coarse physical or mental state.
type Level string

const (
	LevelLow    Level = "low"
	LevelMedium Level = "medium"
	LevelHigh   Level = "high"
)

// MoodState is the normalized mood assessment threaded into later workers.
// Score is the mood worker's confidence in MoodLabel, clamped to [0,1].
type MoodState struct {
	MoodLabel       string              `json:"mood_label"`
	Score           float64             `json:"score"`
	Valence         string              `json:"valence"`
	Energy          string              `json:"energy"`
	PhysicalState   Level               `json:"physical_state"`
	MentalState     Level               `json:"mental_state"`
	MatchedKeywords map[string][]string `json:"matched_keywords"`
}

// Transcription is the speech worker's reply.
type Transcription struct {
	Agent      string `json:"agent,omitempty"`
	InputFile  string `json:"input_file"`
	OutputFile string `json:"output_file"`
	OutputText string `json:"output_text"`
}

// NutritionResult is the knowledge worker's suggestion set for a goal.
type NutritionResult struct {
	Goal        string           `json:"goal"`
	SQL         string           `json:"sql"`
	Suggestions []map[string]any `json:"suggestions"`
}

// VisionResult is the free-form meal image analysis.
type VisionResult map[string]any

// HistoryEntry is one stored interaction of a user.
type HistoryEntry struct {
	ID        int64          `json:"id"`
	UserID    string         `json:"user_id"`
	Role      string         `json:"role"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata"`
	CreatedAt time.Time      `json:"created_at"`
}

// Result is the aggregate output of one turn. Nil fields mean the worker was
// never invoked or failed.
type Result struct {
	MoodState           *MoodState       `json:"mood_state"`
	CoachAnswer         *string          `json:"coach_answer"`
	SpeechTranscription *Transcription   `json:"speech_transcription"`
	NutritionResult     *NutritionResult `json:"nutrition_result"`
	VisionResult        VisionResult     `json:"vision_result"`
	HistoryResult       []HistoryEntry   `json:"history_result"`
	CalledServices      []RawCommand     `json:"called_services"`
}

// Completed is published once a turn has been assembled.
type Completed struct {
	TurnID      string    `json:"turn_id"`
	UserID      string    `json:"user_id,omitempty"`
	UserInput   string    `json:"user_input"`
	Result      Result    `json:"result"`
	CompletedAt time.Time `json:"completed_at"`
}
