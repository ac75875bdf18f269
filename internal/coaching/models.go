package coaching

import "time"

type Subscription struct {
	AthleteID string    `json:"athlete"`
	CoachID   string    `json:"coach"`
	CreatedAt time.Time `json:"created_at"`
}

// Analytics holds the leaders among a coach's subscribed athletes. Every
// pair is null when no subscribed athlete has a finished run.
type Analytics struct {
	LongestRunUser  *string  `json:"longest_run_user"`
	LongestRunValue *float64 `json:"longest_run_value"`
	TotalRunUser    *string  `json:"total_run_user"`
	TotalRunValue   *float64 `json:"total_run_value"`
	SpeedAvgUser    *string  `json:"speed_avg_user"`
	SpeedAvgValue   *float64 `json:"speed_avg_value"`
}
