package services

import (
	"sync"

	"busclient/internal/domain/models"
)

var sharedDefaultTable = sync.OnceValue(DefaultFareTable)

// FareEngine prices a route for a service class. Quote is pure; callers requote on every input change.
type FareEngine struct {
	Table *FareTable
}

func (e FareEngine) table() *FareTable {
	if e.Table != nil {
		return e.Table
	}
	return sharedDefaultTable()
}

// Quote returns round-half-up(baseFare × multiplier). Unknown routes or classes give models.NoQuote.
func (e FareEngine) Quote(route models.Route, class models.ServiceClass) models.FareQuote {
	if !route.Complete() || !class.Valid() {
		return models.NoQuote(route, class)
	}
	base, ok := e.table().BaseFare(route)
	if !ok {
		return models.NoQuote(route, class)
	}
	return models.FareQuote{
		Route:      route,
		Class:      class,
		Amount:     applyMultiplier(base, class.MultiplierPercent()),
		Determined: true,
	}
}

// applyMultiplier rounds half up in integer hundredths, avoiding float drift (850 × 1.3 = 1105).
func applyMultiplier(base, percent int64) int64 {
	if base <= 0 {
		return 0
	}
	return (base*percent + 50) / 100
}

// Routes lists the priced routes, for the popular-routes picker.
func (e FareEngine) Routes() []models.RouteFare {
	return e.table().Routes()
}

func (e FareEngine) TimeSlots() []string {
	return e.table().TimeSlots()
}
