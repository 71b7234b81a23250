// Package turn defines the in-memory model of one user turn: the service
// commands produced by the router, the step kinds the scheduler orders, and
// the aggregate result handed back to the caller.
package turn

import "strings"

// Capability names emitted by the router.
const (
	CapabilityMood      = "mood"
	CapabilityCoaching  = "coaching"
	CapabilitySpeech    = "speech"
	CapabilityKnowledge = "knowledge"
	CapabilityNutrition = "nutrition"
	CapabilityVision    = "vision"
	CapabilityHistory   = "history"
)

// Command task names.
const (
	TaskAnalyzeMood          = "analyze-mood"
	TaskCoachResponse        = "coach-response"
	TaskTranscribeAudio      = "transcribe-audio"
	TaskNutritionSuggestions = "nutrition-suggestions"
	TaskAnalyzeMeal          = "analyze-meal"
	TaskAnalyzeImage         = "analyze-image"
	TaskAnalyzeDietImage     = "analyze-diet-image"
	TaskGetHistory           = "get-history"
)

// Kind groups the (capability, task) pairs that drive the same step.
// Aliases of one kind share an adapter and execute at most once per turn.
type Kind string

const (
	KindTranscription Kind = "transcription"
	KindMood          Kind = "mood"
	KindNutrition     Kind = "nutrition"
	KindVision        Kind = "vision"
	KindHistory       Kind = "history"
	KindCoaching      Kind = "coaching"
)

// Key identifies an adapter in the registry.
type Key struct {
	Capability string
	Task       string
}

func (k Key) String() string {
	return k.Capability + "/" + k.Task
}

// RawCommand is one router entry exactly as received, before normalization.
// Text is nil when the router omitted it.
type RawCommand struct {
	Service string  `json:"service"`
	Command string  `json:"command"`
	Text    *string `json:"text,omitempty"`
}

// Command is a normalized instruction to invoke one capability.
// Text may be overwritten by the orchestrator before the adapter runs.
type Command struct {
	Capability string
	Task       string
	Text       string
}

// Key returns the registry key of the command.
func (c *Command) Key() Key {
	return Key{Capability: c.Capability, Task: c.Task}
}

// NewCommand builds a command with canonical names.
func NewCommand(capability, task, text string) Command {
	return Command{
		Capability: CanonicalName(capability),
		Task:       CanonicalName(task),
		Text:       text,
	}
}

// CanonicalName lowercases a capability or task name and maps underscores to
// hyphens so "coach_response" and "coach-response" address the same adapter.
func CanonicalName(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "_", "-")
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
