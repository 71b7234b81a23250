package service

import (
	"strings"

	"github.com/Strob0t/CoachForge/internal/domain/turn"
)

// keywordRule emits one command when any of its keywords occurs in the
// lowercased user text. Adding a capability means adding a row.
type keywordRule struct {
	capability string
	task       string
	keywords   []string
}

var keywordRules = []keywordRule{
	{
		capability: turn.CapabilityMood,
		task:       turn.TaskAnalyzeMood,
		keywords: []string{
			"fatigué", "fatigue", "épuisé", "epuise", "stressé", "stress",
			"déprimé", "motivé", "démotivé", "motivation", "anxieux",
			"angoissé", "moral", "crevé",
		},
	},
	{
		capability: turn.CapabilityCoaching,
		task:       turn.TaskCoachResponse,
		keywords: []string{
			"sport", "séance", "entrainement", "entraînement", "programme",
			"musculation", "cardio", "course", "marathon", "footing",
			"perte de poids", "reprendre le sport",
		},
	},
	{
		capability: turn.CapabilityNutrition,
		task:       turn.TaskAnalyzeMeal,
		keywords: []string{
			"repas", "déjeuner", "dejeuner", "dîner", "diner", "calories",
			"calorique", "manger", "mangé", "nutrition", "plat", "menu",
			"couscous", "burger", "pizza",
			"perdre du poids", "perte de poids", "perdre du gras",
			"perte de gras", "maigrir", "mincir", "sèche", "seche",
		},
	},
}

// matchKeywords returns, in table order, one command per rule that matches
// text. Every command carries the original text.
func matchKeywords(text string) []turn.RawCommand {
	lower := strings.ToLower(text)
	var out []turn.RawCommand
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				out = append(out, turn.RawCommand{
					Service: rule.capability,
					Command: rule.task,
					Text:    turn.StringPtr(text),
				})
				break
			}
		}
	}
	return out
}

// mergeCommands appends the fallback entries whose (capability, task) key is
// not already present in primary. Keys compare on canonical names.
func mergeCommands(primary, fallback []turn.RawCommand) []turn.RawCommand {
	seen := make(map[turn.Key]struct{}, len(primary))
	out := make([]turn.RawCommand, 0, len(primary)+len(fallback))
	for _, c := range primary {
		seen[rawKey(c)] = struct{}{}
		out = append(out, c)
	}
	for _, c := range fallback {
		k := rawKey(c)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

// ensureCoaching appends a coaching/coach-response command for text unless
// one is already present. Other coaching tasks do not count.
func ensureCoaching(cmds []turn.RawCommand, text string) []turn.RawCommand {
	want := turn.Key{Capability: turn.CapabilityCoaching, Task: turn.TaskCoachResponse}
	for _, c := range cmds {
		if rawKey(c) == want {
			return cmds
		}
	}
	return append(cmds, turn.RawCommand{
		Service: turn.CapabilityCoaching,
		Command: turn.TaskCoachResponse,
		Text:    turn.StringPtr(text),
	})
}

func rawKey(c turn.RawCommand) turn.Key {
	return turn.Key{Capability: turn.CanonicalName(c.Service), Task: turn.CanonicalName(c.Command)}
}
