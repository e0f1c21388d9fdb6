package models

// Zone is a named geographic area indicators are attached to.
type Zone struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	PostalCode string `json:"postal_code"`
	Geometry   string `json:"geometry,omitempty"`
}
