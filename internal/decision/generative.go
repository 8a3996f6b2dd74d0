package decision

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hatim381/dilemme-du-prisonnier/internal/model"
	"github.com/hatim381/dilemme-du-prisonnier/internal/service/generation"
)

// historyWindow is how many past rounds the prompt shows.
const historyWindow = 5

// Generative queries backend for each move. Failures and unparseable answers
// are logged and reported as model.MoveNone.
func Generative(cfg model.AgentConfig, backend generation.Backend, logger *slog.Logger) Func {
	system, ok := SystemPrompt(cfg.Profile)
	if !ok && cfg.Profile != "" {
		logger.Warn("decision: unknown profile, using default", "agent", cfg.Name, "profile", cfg.Profile)
	}
	return func(ctx context.Context, own, opponent []model.Move) model.Move {
		req := generation.Request{
			Model:       cfg.Model,
			Prompt:      BuildPrompt(cfg.IncludeContext, system, own, opponent),
			System:      system,
			Temperature: cfg.Temperature,
		}
		text, err := backend.Generate(ctx, req)
		if err != nil {
			logger.Warn("decision: backend call failed", "agent", cfg.Name, "model", cfg.Model, "error", err)
			return model.MoveNone
		}
		move := ParseMove(text)
		if move == model.MoveNone {
			logger.Debug("decision: unparseable answer", "agent", cfg.Name, "answer", truncate(text, 80))
		}
		return move
	}
}

// BuildPrompt renders the per-round prompt. History shows at most the last
// historyWindow rounds, numbered from the start of the match.
func BuildPrompt(includeContext bool, profileInstruction string, own, opponent []model.Move) string {
	var b strings.Builder
	if includeContext {
		b.WriteString("You are playing the Iterated Prisoner's Dilemma.\n")
	} else {
		b.WriteString("You are playing a game with two options.\n")
	}
	b.WriteString(profileInstruction)
	b.WriteString("\n\n")
	b.WriteString("You can choose to Cooperate ('C') or Defect ('D').\n")
	b.WriteString("Payoff Matrix:\n")
	b.WriteString("- Both Cooperate: 3 points each\n")
	b.WriteString("- You Cooperate, Opponent Defects: 0 points for you, 5 for opponent\n")
	b.WriteString("- You Defect, Opponent Cooperates: 5 points for you, 0 for opponent\n")
	b.WriteString("- Both Defect: 1 point each\n\n")
	b.WriteString("Game History (last 5 moves):\n")

	n := min(len(own), len(opponent))
	for i := max(0, n-historyWindow); i < n; i++ {
		fmt.Fprintf(&b, "Round %d: You played %s, Opponent played %s\n", i+1, own[i], opponent[i])
	}
	b.WriteString("\nBased on this, what is your next move? Respond with ONLY the single character 'C' or 'D'.")
	return b.String()
}

const answerCutset = " \t\r\n'\"`*.!:"

// ParseMove extracts a move from free-form backend output. It accepts a bare
// "C" or "D" (case-insensitive, ignoring quotes and punctuation) or text that
// names exactly one of COOPERATE and DEFECT. Anything else is MoveNone.
func ParseMove(text string) model.Move {
	s := strings.ToUpper(strings.Trim(strings.TrimSpace(text), answerCutset))
	switch s {
	case "C":
		return model.MoveCooperate
	case "D":
		return model.MoveDefect
	}
	coop := strings.Contains(s, "COOPERATE")
	defect := strings.Contains(s, "DEFECT")
	switch {
	case coop && !defect:
		return model.MoveCooperate
	case defect && !coop:
		return model.MoveDefect
	default:
		return model.MoveNone
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
