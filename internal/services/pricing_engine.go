package services

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"

	"github.com/cafe-delivery/storefront/internal/domain"
)

const earthRadiusMeters = 6371e3

// ErrPricingInvalidRules is returned when the fee schedule cannot produce a quote.
var ErrPricingInvalidRules = errors.New("pricing engine: invalid rules")

// PricingRules is the delivery fee schedule and tax rate, plus the café location used as the
// distance origin.
type PricingRules struct {
	BaseDeliveryFee  decimal.Decimal
	FreeRadiusMeters int
	StepMeters       int
	StepFee          decimal.Decimal
	TaxRate          decimal.Decimal
	OriginLatitude   float64
	OriginLongitude  float64
}

// DefaultPricingRules returns the café's standard schedule.
func DefaultPricingRules() PricingRules {
	return PricingRules{
		BaseDeliveryFee:  decimal.RequireFromString("2.99"),
		FreeRadiusMeters: 500,
		StepMeters:       100,
		StepFee:          decimal.NewFromInt(1),
		TaxRate:          decimal.RequireFromString("0.08"),
		OriginLatitude:   9.0320,
		OriginLongitude:  38.7469,
	}
}

// PricingEngine derives totals from the cart and the delivery location. Values are kept at full
// precision; rounding happens when amounts are rendered.
type PricingEngine struct {
	rules PricingRules
}

// NewPricingEngine validates the rules.
func NewPricingEngine(rules PricingRules) (*PricingEngine, error) {
	if rules.StepMeters <= 0 || rules.FreeRadiusMeters < 0 {
		return nil, ErrPricingInvalidRules
	}
	if rules.BaseDeliveryFee.IsNegative() || rules.StepFee.IsNegative() || rules.TaxRate.IsNegative() {
		return nil, ErrPricingInvalidRules
	}
	return &PricingEngine{rules: rules}, nil
}

// Rules returns the configured schedule.
func (e *PricingEngine) Rules() PricingRules { return e.rules }

// Subtotal sums price × quantity; malformed or negative lines contribute zero.
func (e *PricingEngine) Subtotal(lines []domain.CartLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.LineTotal())
	}
	return total
}

// DeliveryFee charges the base fee, plus the step fee for every full step beyond the free radius
// when the visitor supplied custom coordinates.
func (e *PricingEngine) DeliveryFee(loc domain.DeliveryLocation) decimal.Decimal {
	distance := e.distanceFor(loc)
	if !loc.UseCustom || distance == 0 {
		return e.rules.BaseDeliveryFee
	}
	extra := math.Max(0, distance-float64(e.rules.FreeRadiusMeters))
	steps := math.Floor(extra / float64(e.rules.StepMeters))
	return e.rules.BaseDeliveryFee.Add(e.rules.StepFee.Mul(decimal.NewFromFloat(steps)))
}

// Tax applies the tax rate to the subtotal.
func (e *PricingEngine) Tax(subtotal decimal.Decimal) decimal.Decimal {
	return subtotal.Mul(e.rules.TaxRate)
}

// Quote computes every amount for the cart and location.
func (e *PricingEngine) Quote(lines []domain.CartLine, loc domain.DeliveryLocation) domain.PricingResult {
	subtotal := e.Subtotal(lines)
	fee := e.DeliveryFee(loc)
	tax := e.Tax(subtotal)
	distance := 0.0
	if loc.UseCustom {
		distance = e.distanceFor(loc)
	}
	return domain.PricingResult{
		Subtotal:       subtotal,
		DeliveryFee:    fee,
		Tax:            tax,
		Total:          subtotal.Add(fee).Add(tax),
		DistanceMeters: distance,
	}
}

// DistanceFromOrigin returns the distance in meters from the café.
func (e *PricingEngine) DistanceFromOrigin(lat, lng float64) float64 {
	return Distance(e.rules.OriginLatitude, e.rules.OriginLongitude, lat, lng)
}

func (e *PricingEngine) distanceFor(loc domain.DeliveryLocation) float64 {
	if loc.DistanceMeters != nil {
		if d := *loc.DistanceMeters; finite(d) && d > 0 {
			return d
		}
		return 0
	}
	if loc.Latitude == nil || loc.Longitude == nil {
		return 0
	}
	return e.DistanceFromOrigin(*loc.Latitude, *loc.Longitude)
}

// Distance is the haversine distance in meters. Non-finite input yields zero.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	if !finite(lat1) || !finite(lon1) || !finite(lat2) || !finite(lon2) {
		return 0
	}
	phi1 := lat1 * math.Pi / 180
	phi2 := lat2 * math.Pi / 180
	dPhi := (lat2 - lat1) * math.Pi / 180
	dLambda := (lon2 - lon1) * math.Pi / 180

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	d := earthRadiusMeters * c
	if !finite(d) {
		return 0
	}
	return d
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
