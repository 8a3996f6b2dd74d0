package decision

import (
	"sort"
	"strings"

	"github.com/hatim381/dilemme-du-prisonnier/internal/model"
)

var profiles = map[string]string{
	model.ProfileDefault:     "Your goal is to maximize your own score.",
	model.ProfileCooperative: "You are a cooperative agent. You prefer to cooperate unless the opponent is consistently hostile. You believe in mutual benefit.",
	model.ProfileGrudger:     "You are a rancorous agent. You cooperate initially, but if the opponent defects even once, you will defect forever. You do not forgive.",
	model.ProfileTitForTat:   "You are a fair agent. You start by cooperating, then you simply copy whatever the opponent did in the last round.",
	model.ProfileRandom:      "You are a chaotic agent. You choose your moves randomly without much regard for the history.",
	model.ProfileSelfish:     "You are a selfish agent. You only care about your own immediate gain. You will defect if you think you can get away with it.",
}

// Profiles returns the behavioral profile names, sorted.
func Profiles() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SystemPrompt returns the instruction for profile. Lookup is
// case-insensitive; unknown names get the default profile and ok=false.
func SystemPrompt(profile string) (prompt string, ok bool) {
	prompt, ok = profiles[strings.ToLower(profile)]
	if !ok {
		return profiles[model.ProfileDefault], false
	}
	return prompt, true
}
