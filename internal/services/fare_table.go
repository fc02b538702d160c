package services

import (
	"context"
	"fmt"
	"os"
	"strings"

	"busclient/internal/domain"
	"busclient/internal/domain/models"

	"gopkg.in/yaml.v3"
)

// defaultRouteFares are the popular routes offered by the booking form.
var defaultRouteFares = []models.RouteFare{
	{From: "Dhaka", To: "Chittagong", BaseFare: 850, Duration: "6h 30m"},
	{From: "Dhaka", To: "Sylhet", BaseFare: 650, Duration: "5h 45m"},
	{From: "Dhaka", To: "Rajshahi", BaseFare: 550, Duration: "4h 30m"},
	{From: "Dhaka", To: "Rangpur", BaseFare: 750, Duration: "6h 15m"},
	{From: "Dhaka", To: "Khulna", BaseFare: 600, Duration: "5h 30m"},
	{From: "Dhaka", To: "Barisal", BaseFare: 500, Duration: "4h 45m"},
	{From: "Dhaka", To: "Netrakona", BaseFare: 400, Duration: "4h 00m"},
	{From: "Netrakona", To: "Dhaka", BaseFare: 400, Duration: "4h 00m"},
}

var defaultTimeSlots = []string{
	"06:00", "07:30", "09:00", "10:30", "12:00", "14:00", "16:00", "18:00", "20:00", "22:00",
}

// FareTable is immutable once built and safe to share.
type FareTable struct {
	fares map[string]models.RouteFare
	order []string
	slots []string
}

// NewFareTable indexes rows by normalized route. A later row for the same route replaces the earlier one.
func NewFareTable(rows []models.RouteFare, slots []string) (*FareTable, error) {
	t := &FareTable{fares: make(map[string]models.RouteFare, len(rows))}
	for i, row := range rows {
		row.From = strings.TrimSpace(row.From)
		row.To = strings.TrimSpace(row.To)
		if !row.Route().Complete() {
			return nil, domain.ValidationError{Field: fmt.Sprintf("routes[%d]", i), Msg: "from and to are required"}
		}
		if row.BaseFare < 0 {
			return nil, domain.ValidationError{Field: fmt.Sprintf("routes[%d].fare", i), Msg: "must not be negative"}
		}
		key := row.Route().Key()
		if _, seen := t.fares[key]; !seen {
			t.order = append(t.order, key)
		}
		t.fares[key] = row
	}
	for _, s := range slots {
		if s = strings.TrimSpace(s); s != "" {
			t.slots = append(t.slots, s)
		}
	}
	if len(t.slots) == 0 {
		t.slots = append(t.slots, defaultTimeSlots...)
	}
	return t, nil
}

// DefaultFareTable returns the built-in route catalog.
func DefaultFareTable() *FareTable {
	t, err := NewFareTable(defaultRouteFares, defaultTimeSlots)
	if err != nil {
		panic(err)
	}
	return t
}

type fareTableFile struct {
	Routes    []models.RouteFare `yaml:"routes"`
	TimeSlots []string           `yaml:"timeSlots"`
}

// LoadFareTableFile reads a YAML fare table:
//
//	routes:
//	  - {from: Dhaka, to: Chittagong, fare: 850}
//	timeSlots: ["06:00", "07:30"]
func LoadFareTableFile(path string) (*FareTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.InternalError{Msg: "could not read the fare table", Err: err}
	}
	var f fareTableFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, domain.ValidationError{Field: "fare_table", Msg: "invalid YAML", Err: err}
	}
	if len(f.Routes) == 0 {
		return nil, domain.ValidationError{Field: "routes", Msg: "no routes defined"}
	}
	return NewFareTable(f.Routes, f.TimeSlots)
}

// BaseFare looks up the route ignoring case and extra whitespace.
func (t *FareTable) BaseFare(route models.Route) (int64, bool) {
	if t == nil {
		return 0, false
	}
	row, ok := t.fares[route.Key()]
	if !ok {
		return 0, false
	}
	return row.BaseFare, true
}

// Routes returns rows in first-registration order.
func (t *FareTable) Routes() []models.RouteFare {
	if t == nil {
		return nil
	}
	out := make([]models.RouteFare, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, t.fares[k])
	}
	return out
}

func (t *FareTable) TimeSlots() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.slots...)
}

func (t *FareTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.fares)
}

// RouteFareSource is satisfied by repositories.FareRepository.
type RouteFareSource interface {
	ListRouteFares(ctx context.Context) ([]models.RouteFare, error)
}

// LoadFareTable builds a table from a backing source, keeping the built-in time slots.
func LoadFareTable(ctx context.Context, src RouteFareSource) (*FareTable, error) {
	rows, err := src.ListRouteFares(ctx)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, domain.NotFoundError{Resource: "route fares"}
	}
	return NewFareTable(rows, defaultTimeSlots)
}
