package domain

import "time"

type Shop struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Area      string    `json:"area"`
	Address   string    `json:"address"`
	AvgPrice  int64     `json:"avg_price"`
	Sold      int       `json:"sold"`
	Score     int       `json:"score"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
