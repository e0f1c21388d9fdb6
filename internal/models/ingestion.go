package models

// IngestionDetails counts the records pulled from each external feed.
type IngestionDetails struct {
	WeatherData    int `json:"weather_data"`
	AirQualityData int `json:"air_quality_data"`
	EnergyData     int `json:"energy_data"`
	Total          int `json:"total"`
}

// IngestionResult is returned by POST /indicators/ingest/external-data.
type IngestionResult struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Detail  string           `json:"detail,omitempty"`
	Details IngestionDetails `json:"details"`
}
