package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	intconfig "busclient/internal/config"
	intdb "busclient/internal/db"
	"busclient/internal/domain"
	"busclient/internal/domain/models"
)

const routeFaresTable = "route_fares"

// FareRepository reads the route_fares table maintained by the booking backend.
type FareRepository struct {
	DB      *sql.DB
	Dialect string
}

func (r FareRepository) db() *sql.DB {
	if r.DB != nil {
		return r.DB
	}
	return intconfig.DB
}

// ListRouteFares returns active rows ordered by id. Missing table is a NotFoundError.
func (r FareRepository) ListRouteFares(ctx context.Context) ([]models.RouteFare, error) {
	db := r.db()
	if db == nil {
		return nil, domain.InternalError{Msg: "fare database is not configured"}
	}
	if !intdb.HasTable(db, r.Dialect, routeFaresTable) {
		return nil, domain.NotFoundError{Resource: routeFaresTable}
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(`
		SELECT route_from, route_to, base_fare, COALESCE(duration, '')
		FROM %s
		WHERE active = TRUE
		ORDER BY id
	`, routeFaresTable))
	if err != nil {
		return nil, domain.InternalError{Msg: "could not query route_fares", Err: err}
	}
	defer rows.Close()

	out := []models.RouteFare{}
	for rows.Next() {
		var f models.RouteFare
		if err := rows.Scan(&f.From, &f.To, &f.BaseFare, &f.Duration); err != nil {
			return nil, domain.InternalError{Msg: "could not read route_fares", Err: err}
		}
		f.From = strings.TrimSpace(f.From)
		f.To = strings.TrimSpace(f.To)
		if f.From == "" || f.To == "" {
			continue
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.InternalError{Msg: "could not read route_fares", Err: err}
	}
	return out, nil
}
