package run

import (
	"time"

	"backend-projectrun/internal/shared/runstate"
)

type Run struct {
	ID             int64           `json:"id"`
	AthleteID      string          `json:"athlete"`
	Comment        string          `json:"comment"`
	Status         runstate.Status `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	Distance       float64         `json:"distance"`
	RunTimeSeconds int64           `json:"run_time_seconds"`
	Speed          float64         `json:"speed"`
}

type Filter struct {
	AthleteID string
	Status    runstate.Status
}

type StopResult struct {
	Run        Run      `json:"run"`
	Challenges []string `json:"challenges"`
}
