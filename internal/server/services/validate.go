package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/autolot/internal/common"
	"github.com/dmitrijs2005/autolot/internal/server/models"
)

// firstModelYear is the year of the first production automobile.
const firstModelYear = 1886

// VehicleFields are the scalar listing fields supplied on create.
type VehicleFields struct {
	Make          string
	Model         string
	Year          int
	Price         float64
	Description   string
	ExteriorColor string
	InteriorColor string
	Mileage       int
	Engine        string
	Transmission  string
	Drivetrain    string
	Fuel          string
	BodyStyle     string
	VIN           string
}

func (f VehicleFields) apply(v *models.Vehicle) {
	v.Make = strings.TrimSpace(f.Make)
	v.Model = strings.TrimSpace(f.Model)
	v.Year = f.Year
	v.Price = f.Price
	v.Description = f.Description
	v.ExteriorColor = f.ExteriorColor
	v.InteriorColor = f.InteriorColor
	v.Mileage = f.Mileage
	v.Engine = f.Engine
	v.Transmission = f.Transmission
	v.Drivetrain = f.Drivetrain
	v.Fuel = f.Fuel
	v.BodyStyle = f.BodyStyle
	v.VIN = strings.TrimSpace(f.VIN)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", common.ErrorValidation, fmt.Sprintf(format, args...))
}

// validateVehicle checks the scalar fields of a complete listing.
func validateVehicle(v *models.Vehicle, now time.Time) error {
	if strings.TrimSpace(v.Make) == "" {
		return invalid("make is required")
	}
	if strings.TrimSpace(v.Model) == "" {
		return invalid("model is required")
	}
	if !(v.Price > 0) {
		return invalid("price must be a positive number")
	}
	if v.Year != 0 && (v.Year < firstModelYear || v.Year > now.Year()+1) {
		return invalid("year %d is out of range", v.Year)
	}
	if v.Mileage < 0 {
		return invalid("mileage must not be negative")
	}
	return nil
}
