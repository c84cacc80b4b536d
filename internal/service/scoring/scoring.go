package scoring

import "github.com/octobees/mailprobe/internal/entity"

const (
	categorySyntax       = "syntax"
	categoryDomain       = "domain_quality"
	categoryMX           = "mx_records"
	categoryReachability = "reachability"

	pointsSyntax            = 25
	pointsNotDisposable     = 25
	pointsMX                = 25
	pointsReachable         = 25
	pointsReachableCatchAll = 15
	pointsUnknown           = 10
)

// EmailSignals captures the validation signals used for scoring.
type EmailSignals struct {
	SyntaxValid bool
	Disposable  bool
	HasMX       bool
	Reachable   entity.Reachability
	CatchAll    bool
}

// ScoreResult reports the aggregate score and the per-category breakdown.
type ScoreResult struct {
	Total     int
	Breakdown map[string]int
}

// ComputeScore evaluates the provided signals. The total is always within 0..100.
func ComputeScore(input EmailSignals) ScoreResult {
	breakdown := map[string]int{
		categorySyntax:       scoreSyntax(input),
		categoryDomain:       scoreDomain(input),
		categoryMX:           scoreMX(input),
		categoryReachability: scoreReachability(input),
	}

	total := 0
	for _, value := range breakdown {
		total += value
	}

	return ScoreResult{
		Total:     total,
		Breakdown: breakdown,
	}
}

func scoreSyntax(input EmailSignals) int {
	if input.SyntaxValid {
		return pointsSyntax
	}
	return 0
}

func scoreDomain(input EmailSignals) int {
	if input.Disposable {
		return 0
	}
	return pointsNotDisposable
}

func scoreMX(input EmailSignals) int {
	if input.HasMX {
		return pointsMX
	}
	return 0
}

// A catch-all acceptance says nothing about the mailbox, so it earns less.
func scoreReachability(input EmailSignals) int {
	switch input.Reachable {
	case entity.Reachable:
		if input.CatchAll {
			return pointsReachableCatchAll
		}
		return pointsReachable
	case entity.Unreachable:
		return 0
	default:
		return pointsUnknown
	}
}
