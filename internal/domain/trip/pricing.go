package trip

import "fmt"

// PricingStrategy defines the interface for calculating trip fares.
type PricingStrategy interface {
	// Calculate returns the standard fare in céntimos for the given parameters.
	Calculate(params PricingParams) (int64, error)
}

// PricingParams holds the inputs for fare calculation.
type PricingParams struct {
	DistanceKm float64
}

// StandardPricingStrategy implements the default fare logic for Lima routes.
type StandardPricingStrategy struct{}

// NewStandardPricingStrategy creates a new StandardPricingStrategy.
func NewStandardPricingStrategy() *StandardPricingStrategy {
	return &StandardPricingStrategy{}
}

// Calculate computes the standard fare in céntimos (PEN).
//
// Fare formula:
//   - Base fare: S/ 3.00 (300 céntimos)
//   - Distance: S/ 1.20/km (120 céntimos/km)
//   - Cap: S/ 40.00 (4000 céntimos)
func (s *StandardPricingStrategy) Calculate(params PricingParams) (int64, error) {
	if params.DistanceKm < 0 {
		return 0, fmt.Errorf("distance cannot be negative")
	}

	var totalCents int64 = 300
	totalCents += int64(params.DistanceKm * 120)

	if totalCents > 4000 {
		totalCents = 4000
	}
	return totalCents, nil
}
