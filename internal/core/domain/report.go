package domain

// DateFormat is the bucket key for daily aggregates: the UTC calendar date
// of the movement timestamp.
const DateFormat = "2006-01-02"

type DailyStat struct {
	Date     string `json:"date"`
	TotalIn  int    `json:"total_in"`
	TotalOut int    `json:"total_out"`
}
