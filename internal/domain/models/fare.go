package models

import (
	"strings"

	"busclient/internal/utils"
)

// Route is a directional origin/destination pair. Lookups ignore case and surrounding space.
type Route struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Key is the normalized lookup key of the route.
func (r Route) Key() string {
	return normalizeStop(r.From) + "|" + normalizeStop(r.To)
}

// Complete reports whether both endpoints are filled in.
func (r Route) Complete() bool {
	return strings.TrimSpace(r.From) != "" && strings.TrimSpace(r.To) != ""
}

func (r Route) Equal(o Route) bool {
	return r.Key() == o.Key()
}

func normalizeStop(s string) string {
	return utils.FoldKey(s)
}

// ServiceClass is the bus service tier. Each tier carries a fixed fare multiplier.
type ServiceClass string

const (
	ServiceStandard ServiceClass = "Standard"
	ServicePremium  ServiceClass = "Premium"
	ServiceSleeper  ServiceClass = "Sleeper"
	ServiceDeluxe   ServiceClass = "Deluxe"
)

// multiplier in hundredths so fare math stays in integers.
var classMultiplier = map[ServiceClass]int64{
	ServiceStandard: 100,
	ServicePremium:  150,
	ServiceSleeper:  200,
	ServiceDeluxe:   130,
}

var classWireName = map[ServiceClass]string{
	ServiceStandard: "Non-AC",
	ServicePremium:  "AC",
	ServiceSleeper:  "Sleeper",
	ServiceDeluxe:   "Deluxe",
}

var classLabel = map[ServiceClass]string{
	ServiceStandard: "Non-AC Bus",
	ServicePremium:  "AC Bus",
	ServiceSleeper:  "Sleeper Coach",
	ServiceDeluxe:   "Deluxe",
}

// ServiceClasses lists every class in display order.
func ServiceClasses() []ServiceClass {
	return []ServiceClass{ServicePremium, ServiceStandard, ServiceSleeper, ServiceDeluxe}
}

// ParseServiceClass accepts canonical names and the booking form's bus type values (AC, Non-AC, ...).
func ParseServiceClass(s string) (ServiceClass, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	switch key {
	case "standard", "nonac":
		return ServiceStandard, true
	case "premium", "ac":
		return ServicePremium, true
	case "sleeper", "sleepercoach":
		return ServiceSleeper, true
	case "deluxe":
		return ServiceDeluxe, true
	}
	return "", false
}

func (c ServiceClass) Valid() bool {
	_, ok := classMultiplier[c]
	return ok
}

// MultiplierPercent returns the multiplier in hundredths (Premium = 150).
func (c ServiceClass) MultiplierPercent() int64 {
	return classMultiplier[c]
}

func (c ServiceClass) Multiplier() float64 {
	return float64(classMultiplier[c]) / 100
}

// WireName is the bus type value the booking endpoint expects.
func (c ServiceClass) WireName() string {
	if n, ok := classWireName[c]; ok {
		return n
	}
	return string(c)
}

func (c ServiceClass) Label() string {
	if l, ok := classLabel[c]; ok {
		return l
	}
	return string(c)
}

// FareQuote is derived from a (Route, ServiceClass) pair. Determined=false is "no quote yet",
// which is not the same as a zero fare.
type FareQuote struct {
	Route      Route        `json:"route"`
	Class      ServiceClass `json:"serviceClass"`
	Amount     int64        `json:"amount"`
	Determined bool         `json:"determined"`
}

// NoQuote is returned when the route has no registered base fare.
func NoQuote(route Route, class ServiceClass) FareQuote {
	return FareQuote{Route: route, Class: class}
}

// Valid is true for a determined, positive fare.
func (q FareQuote) Valid() bool {
	return q.Determined && q.Amount > 0
}

// RouteFare is one row of the fare table.
type RouteFare struct {
	From     string `json:"from" yaml:"from"`
	To       string `json:"to" yaml:"to"`
	BaseFare int64  `json:"fare" yaml:"fare"`
	Duration string `json:"duration,omitempty" yaml:"duration,omitempty"`
}

func (f RouteFare) Route() Route {
	return Route{From: f.From, To: f.To}
}
