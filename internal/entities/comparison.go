package entities

import "time"

// ComparisonRecord is one row of the comparison audit log
type ComparisonRecord struct {
	ID        int64     `json:"id"`
	Komm1     string    `json:"komm1"`
	Komm1Name string    `json:"komm1Name"`
	Komm2     string    `json:"komm2"`
	Komm2Name string    `json:"komm2Name"`
	Score1    float64   `json:"score1"`
	Score2    float64   `json:"score2"`
	Winner    string    `json:"winner"` // komm id of the winner, empty on a tie
	CreatedAt time.Time `json:"createdAt"`
}
