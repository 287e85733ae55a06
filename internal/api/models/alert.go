package models

// Alert is the API view of a safety alert.
type Alert struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	TouristID   string    `json:"touristId"`
	Severity    string    `json:"severity"`
	Location    Point     `json:"location"`
	Description string    `json:"description,omitempty"`
	Confidence  float64   `json:"confidence"`
	Status      string    `json:"status"`
	DetectedAt  Timestamp `json:"detectedAt"`
	UpdatedAt   Timestamp `json:"updatedAt"`
}

// AlertList is a list of alerts, newest first.
type AlertList struct {
	Items []Alert `json:"items"`
}

// SOSState is the API view of a tourist's panic-button state.
type SOSState struct {
	TouristID        string  `json:"touristId"`
	State            string  `json:"state"`
	CountdownSeconds float64 `json:"countdownSeconds,omitempty"`
}
