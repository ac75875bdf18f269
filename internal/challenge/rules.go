package challenge

import "backend-projectrun/internal/run"

const (
	TenRuns        = "10 runs"
	FiftyKmTotal   = "50 km total"
	TwoKmUnderTen  = "2 km under 10 minutes"
	runCountTarget = 10
	totalKmTarget  = 50.0
	paceMaxSeconds = 600
	paceMinKm      = 2.0
)

type Rule struct {
	Name string
	// NeedsStats rules read the athlete's totals; the others look at the
	// finished run alone and still apply when the totals cannot be loaded.
	NeedsStats bool
	Match      func(st Stats, r run.Run) bool
}

// Rules are evaluated in order and independently of each other.
var Rules = []Rule{
	{Name: TenRuns, NeedsStats: true, Match: func(st Stats, _ run.Run) bool {
		return st.FinishedRuns >= runCountTarget
	}},
	{Name: FiftyKmTotal, NeedsStats: true, Match: func(st Stats, _ run.Run) bool {
		return st.FinishedDistance > totalKmTarget
	}},
	{Name: TwoKmUnderTen, Match: func(_ Stats, r run.Run) bool {
		return r.RunTimeSeconds < paceMaxSeconds && r.Distance >= paceMinKm
	}},
}

// Qualifying returns the names of every rule satisfied by st and r.
func Qualifying(st Stats, r run.Run) []string {
	return qualifying(st, true, r)
}

func qualifying(st Stats, haveStats bool, r run.Run) []string {
	var names []string
	for _, rule := range Rules {
		if rule.NeedsStats && !haveStats {
			continue
		}
		if rule.Match(st, r) {
			names = append(names, rule.Name)
		}
	}
	return names
}
