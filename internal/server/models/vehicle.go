// Package models holds the catalog domain types shared by repositories,
// services and the HTTP boundary.
package models

import "time"

// Vehicle is one catalog listing. Images holds public asset references in
// display order; the first one is the primary image. Version is bumped by
// every successful update and guards concurrent edits.
type Vehicle struct {
	ID            string    `json:"id"`
	Make          string    `json:"make"`
	Model         string    `json:"model"`
	Year          int       `json:"year,omitempty"`
	Price         float64   `json:"price"`
	Description   string    `json:"description,omitempty"`
	ExteriorColor string    `json:"exteriorColor,omitempty"`
	InteriorColor string    `json:"interiorColor,omitempty"`
	Mileage       int       `json:"mileage,omitempty"`
	Engine        string    `json:"engine,omitempty"`
	Transmission  string    `json:"transmission,omitempty"`
	Drivetrain    string    `json:"drivetrain,omitempty"`
	Fuel          string    `json:"fuel,omitempty"`
	BodyStyle     string    `json:"bodyStyle,omitempty"`
	VIN           string    `json:"vin,omitempty"`
	Images        []string  `json:"images"`
	Version       int64     `json:"version"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Clone returns a copy that shares no slices with v.
func (v *Vehicle) Clone() *Vehicle {
	if v == nil {
		return nil
	}
	c := *v
	c.Images = append([]string(nil), v.Images...)
	return &c
}

// VehiclePatch is a partial update. A nil field is left untouched.
type VehiclePatch struct {
	Make          *string
	Model         *string
	Year          *int
	Price         *float64
	Description   *string
	ExteriorColor *string
	InteriorColor *string
	Mileage       *int
	Engine        *string
	Transmission  *string
	Drivetrain    *string
	Fuel          *string
	BodyStyle     *string
	VIN           *string
}

// Apply copies every set field of p onto v.
func (p VehiclePatch) Apply(v *Vehicle) {
	setIf(&v.Make, p.Make)
	setIf(&v.Model, p.Model)
	setIf(&v.Year, p.Year)
	setIf(&v.Price, p.Price)
	setIf(&v.Description, p.Description)
	setIf(&v.ExteriorColor, p.ExteriorColor)
	setIf(&v.InteriorColor, p.InteriorColor)
	setIf(&v.Mileage, p.Mileage)
	setIf(&v.Engine, p.Engine)
	setIf(&v.Transmission, p.Transmission)
	setIf(&v.Drivetrain, p.Drivetrain)
	setIf(&v.Fuel, p.Fuel)
	setIf(&v.BodyStyle, p.BodyStyle)
	setIf(&v.VIN, p.VIN)
}

func setIf[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
