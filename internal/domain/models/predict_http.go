package models

// Requests for forecasting endpoints and job payloads. Defined in domain for consistency and reuse.

type PredictRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"required,ticker"`
	StartDate string `query:"start_date" json:"start_date" validate:"omitempty,date"`
	EndDate   string `query:"end_date" json:"end_date" validate:"omitempty,date"`
}

// TrainRequest is the payload of a retrain job on the train topic.
type TrainRequest struct {
	Symbol    string `json:"symbol" validate:"required,ticker"`
	StartDate string `json:"start_date" validate:"omitempty,date"`
	EndDate   string `json:"end_date" validate:"omitempty,date"`
}

type PredictResponse struct {
	Symbol         string  `json:"symbol"`
	PredictedPrice float64 `json:"predicted_price"`
	AsOf           string  `json:"as_of"`
	Window         int     `json:"window"`
}

type ReadinessResponse struct {
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}
