package handlers

import (
	"net/http"

	"busclient/internal/domain"
	"busclient/internal/domain/models"

	"github.com/gin-gonic/gin"
)

type serviceClassView struct {
	Class      models.ServiceClass `json:"class"`
	BusType    string              `json:"busType"`
	Label      string              `json:"label"`
	Multiplier float64             `json:"multiplier"`
}

type routeView struct {
	models.RouteFare
	Fares map[string]int64 `json:"fares"`
}

// Catalog lists popular routes with the fare of every bus type, plus the departure slots.
func (h *Handlers) Catalog(c *gin.Context) {
	engine := h.Core.Fares
	classes := models.ServiceClasses()

	routes := make([]routeView, 0)
	for _, rf := range engine.Routes() {
		v := routeView{RouteFare: rf, Fares: map[string]int64{}}
		for _, cl := range classes {
			if q := engine.Quote(rf.Route(), cl); q.Determined {
				v.Fares[cl.WireName()] = q.Amount
			}
		}
		routes = append(routes, v)
	}

	views := make([]serviceClassView, 0, len(classes))
	for _, cl := range classes {
		views = append(views, serviceClassView{Class: cl, BusType: cl.WireName(), Label: cl.Label(), Multiplier: cl.Multiplier()})
	}

	c.JSON(http.StatusOK, gin.H{
		"routes":         routes,
		"timeSlots":      engine.TimeSlots(),
		"serviceClasses": views,
	})
}

// QuoteFare prices ?from=&to=&class=. An unknown route answers determined=false, not a zero fare.
func (h *Handlers) QuoteFare(c *gin.Context) {
	raw := c.DefaultQuery("class", models.ServicePremium.WireName())
	class, ok := models.ParseServiceClass(raw)
	if !ok {
		RespondDomainError(c, domain.ValidationError{Field: "class", Msg: "Unknown bus type"})
		return
	}
	route := models.Route{From: c.Query("from"), To: c.Query("to")}
	c.JSON(http.StatusOK, h.Core.Fares.Quote(route, class))
}
