// README: Order and rider ratings, always written as a pair.
package rating

import "time"

// Score is one rating as submitted by the customer.
type Score struct {
	Rating     int    `json:"rating"`
	ReviewText string `json:"review_text"`
}

func (s Score) valid() bool {
	return s.Rating >= 1 && s.Rating <= 5
}

type OrderRating struct {
	OrderID    string    `json:"order"`
	UserID     string    `json:"user"`
	Rating     int       `json:"rating"`
	ReviewText string    `json:"review_text"`
	CreatedAt  time.Time `json:"createdAt"`
}

type RiderRating struct {
	OrderID    string    `json:"order"`
	RiderID    string    `json:"rider"`
	UserID     string    `json:"user"`
	Rating     int       `json:"rating"`
	ReviewText string    `json:"review_text"`
	CreatedAt  time.Time `json:"createdAt"`
}

type Pair struct {
	Order OrderRating `json:"order_rating"`
	Rider RiderRating `json:"rider_rating"`
}

// Listing is every order and rider rating written by one customer, or by all of them.
type Listing struct {
	OrderRatings []OrderRating `json:"order_ratings"`
	RiderRatings []RiderRating `json:"rider_ratings"`
}
