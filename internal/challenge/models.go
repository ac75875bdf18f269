package challenge

type Challenge struct {
	ID        int64  `json:"id"`
	FullName  string `json:"full_name"`
	AthleteID string `json:"athlete"`
}

type Holder struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
}

// NameSummary lists everyone holding one challenge.
type NameSummary struct {
	FullName string   `json:"full_name"`
	Athletes []Holder `json:"athletes"`
}

// Stats are the athlete's totals over finished runs.
type Stats struct {
	FinishedRuns     int64
	FinishedDistance float64
}
