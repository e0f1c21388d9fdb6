package models

// AirStat is a pre-aggregated average-quality figure for a zone over a range.
type AirStat struct {
	ZoneName       string  `json:"zone_name"`
	AverageQuality float64 `json:"average_quality"`
	DataPoints     int     `json:"data_points"`
	Period         string  `json:"period,omitempty"`
}
