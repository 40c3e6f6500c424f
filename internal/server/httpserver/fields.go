package httpserver

import (
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/autolot/internal/common"
	"github.com/dmitrijs2005/autolot/internal/server/models"
	"github.com/dmitrijs2005/autolot/internal/server/repositories/vehicles"
	"github.com/dmitrijs2005/autolot/internal/server/services"
)

// optionalText names the free-text listing fields other than make, model
// and description.
var optionalText = []string{
	"exteriorColor", "interiorColor", "engine", "transmission",
	"drivetrain", "fuel", "bodyStyle", "vin",
}

func parseVehicleFields(values url.Values) (services.VehicleFields, error) {
	f := services.VehicleFields{
		Make:        strings.TrimSpace(values.Get("make")),
		Model:       strings.TrimSpace(values.Get("model")),
		Description: strings.TrimSpace(values.Get("description")),
	}

	price, ok, err := formPrice(values)
	if err != nil {
		return f, err
	}
	if !ok {
		return f, fmt.Errorf("%w: price is required", common.ErrorValidation)
	}
	f.Price = price

	if f.Year, _, err = formInt(values, "year"); err != nil {
		return f, err
	}
	if f.Mileage, _, err = formInt(values, "mileage"); err != nil {
		return f, err
	}

	text := map[string]*string{
		"exteriorColor": &f.ExteriorColor,
		"interiorColor": &f.InteriorColor,
		"engine":        &f.Engine,
		"transmission":  &f.Transmission,
		"drivetrain":    &f.Drivetrain,
		"fuel":          &f.Fuel,
		"bodyStyle":     &f.BodyStyle,
		"vin":           &f.VIN,
	}
	for _, key := range optionalText {
		if v, ok := formText(values, key); ok {
			*text[key] = v
		}
	}
	return f, nil
}

// parseVehiclePatch sets a field only when the form carries a non-empty
// value for it. The description is the exception: present and empty
// clears it.
func parseVehiclePatch(values url.Values) (models.VehiclePatch, error) {
	var p models.VehiclePatch

	if v, ok := formText(values, "make"); ok {
		p.Make = &v
	}
	if v, ok := formText(values, "model"); ok {
		p.Model = &v
	}
	if _, ok := values["description"]; ok {
		d := strings.TrimSpace(values.Get("description"))
		p.Description = &d
	}

	price, ok, err := formPrice(values)
	if err != nil {
		return p, err
	}
	if ok {
		p.Price = &price
	}

	year, ok, err := formInt(values, "year")
	if err != nil {
		return p, err
	}
	if ok {
		p.Year = &year
	}
	mileage, ok, err := formInt(values, "mileage")
	if err != nil {
		return p, err
	}
	if ok {
		p.Mileage = &mileage
	}

	text := map[string]**string{
		"exteriorColor": &p.ExteriorColor,
		"interiorColor": &p.InteriorColor,
		"engine":        &p.Engine,
		"transmission":  &p.Transmission,
		"drivetrain":    &p.Drivetrain,
		"fuel":          &p.Fuel,
		"bodyStyle":     &p.BodyStyle,
		"vin":           &p.VIN,
	}
	for _, key := range optionalText {
		if v, ok := formText(values, key); ok {
			*text[key] = &v
		}
	}
	return p, nil
}

func formText(values url.Values, key string) (string, bool) {
	raw, ok := values[key]
	if !ok || len(raw) == 0 || raw[0] == "" {
		return "", false
	}
	return strings.TrimSpace(raw[0]), true
}

func formInt(values url.Values, key string) (int, bool, error) {
	raw, ok := formText(values, key)
	if !ok {
		return 0, false, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %s must be a whole number", common.ErrorValidation, key)
	}
	return n, true, nil
}

func formPrice(values url.Values) (float64, bool, error) {
	raw, ok := formText(values, "price")
	if !ok {
		return 0, false, nil
	}
	price, err := strconv.ParseFloat(raw, 64)
	if err != nil || !(price > 0) || math.IsInf(price, 0) {
		return 0, false, fmt.Errorf("%w: price must be a positive number", common.ErrorValidation)
	}
	return price, true, nil
}

const (
	defaultPerPage = 10
	maxPerPage     = 100
)

// parseListQuery reads the inventory filters. "all" or an empty value
// disables a filter, and a missing or malformed page means the first one.
func parseListQuery(values url.Values) (vehicles.ListQuery, error) {
	q := vehicles.ListQuery{
		Sort:    values.Get("sort"),
		Page:    1,
		PerPage: defaultPerPage,
	}

	if m := strings.TrimSpace(values.Get("make")); m != "all" {
		q.Make = m
	}
	if y := strings.TrimSpace(values.Get("year")); y != "" && y != "all" {
		year, err := strconv.Atoi(y)
		if err != nil {
			return q, fmt.Errorf("%w: year must be a whole number", common.ErrorValidation)
		}
		q.Year = year
	}
	if p, err := strconv.Atoi(values.Get("page")); err == nil && p > 0 {
		q.Page = p
	}
	if n, err := strconv.Atoi(values.Get("perPage")); err == nil && n > 0 {
		q.PerPage = min(n, maxPerPage)
	}
	return q, nil
}
