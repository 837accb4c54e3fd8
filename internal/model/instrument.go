package model

// Instrument represents a tradeable futures contract specification.
type Instrument struct {
	Symbol    string  `json:"symbol"`     // e.g. NQ, ES, GC, CL
	TickSize  float64 `json:"tick_size"`  // minimum price increment in points
	TickValue float64 `json:"tick_value"` // dollar value of one tick per contract
}

// Ticks converts a price distance in points to whole-and-fractional ticks.
func (i *Instrument) Ticks(distance float64) float64 {
	if i.TickSize <= 0 {
		return 0
	}
	if distance < 0 {
		distance = -distance
	}
	return distance / i.TickSize
}
