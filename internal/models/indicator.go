package models

// Indicator types known to the backend.
const (
	IndicatorPM25              = "air_quality_pm25"
	IndicatorPM10              = "air_quality_pm10"
	IndicatorNO2               = "air_quality_no2"
	IndicatorCO2               = "co2"
	IndicatorTemperature       = "temperature"
	IndicatorHumidity          = "humidity"
	IndicatorWasteProduction   = "waste_production"
	IndicatorEnergyConsumption = "energy_consumption"
	IndicatorWindSpeed         = "wind_speed"
	IndicatorPressure          = "pressure"
)

// Quality grades an air measurement.
type Quality string

const (
	QualityNone     Quality = ""
	QualityGood     Quality = "good"
	QualityModerate Quality = "moderate"
	QualityPoor     Quality = "poor"
)

// Indicator is a single timestamped environmental measurement.
type Indicator struct {
	ID             int       `json:"id"`
	Type           string    `json:"type"`
	Value          float64   `json:"value"`
	Unit           string    `json:"unit"`
	ZoneID         int       `json:"zone_id"`
	SourceID       int       `json:"source_id"`
	UserID         int       `json:"user_id"`
	Timestamp      Timestamp `json:"timestamp"`
	AdditionalData *string   `json:"additional_data,omitempty"`
}

// Quality grades particulate readings against the thresholds the dashboard
// badges use. Other indicator types are not graded.
func (i Indicator) Quality() Quality {
	var good, moderate float64
	switch i.Type {
	case IndicatorPM25:
		good, moderate = 15, 25
	case IndicatorPM10:
		good, moderate = 20, 35
	default:
		return QualityNone
	}
	switch {
	case i.Value <= good:
		return QualityGood
	case i.Value <= moderate:
		return QualityModerate
	default:
		return QualityPoor
	}
}
