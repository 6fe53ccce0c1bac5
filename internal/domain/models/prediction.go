package models

import "time"

// OutcomeStatus discriminates a prediction result.
type OutcomeStatus string

const (
	OutcomeOK     OutcomeStatus = "ok"
	OutcomeNoData OutcomeStatus = "no_data"
)

// PredictionOutcome is the result of one prediction request. Price and AsOf
// are set only when Status is OutcomeOK; Reason only for OutcomeNoData.
type PredictionOutcome struct {
	Status OutcomeStatus
	Symbol string
	Price  float64
	AsOf   time.Time // date of the last close in the input window
	Window int
	Points int // points fetched for the request
	Reason string
}

// OK reports whether the outcome carries a price.
func (o PredictionOutcome) OK() bool { return o.Status == OutcomeOK }

// PredictionEvent is the archived/published record of a successful prediction.
type PredictionEvent struct {
	ID             string    `json:"id"`
	Symbol         string    `json:"symbol"`
	PredictedPrice float64   `json:"predicted_price"`
	LastClose      float64   `json:"last_close"`
	AsOf           time.Time `json:"as_of"`
	Window         int       `json:"window"`
	Source         string    `json:"source"`
	CreatedAt      time.Time `json:"created_at"`
}
