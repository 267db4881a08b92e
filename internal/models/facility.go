package models

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Facility is a military organization (OM) hosting contracts and users.
type Facility struct {
	Model
	Name       string   `gorm:"not null" json:"name"`
	Codom      string   `gorm:"not null" json:"codom"`
	Codug      string   `gorm:"not null" json:"codug"`
	CNPJ       string   `json:"cnpj"`
	Nickname   string   `gorm:"not null" json:"nickname"`
	Location   Location `gorm:"embedded;embeddedPrefix:location_" json:"location"`
	GeoAddress string   `gorm:"not null" json:"geoAdress"`
}
