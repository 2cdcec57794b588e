package repo

import (
	"context"
	"errors"

	"emsp/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type LocationsRepo struct{ db *pgxpool.Pool }

func NewLocationsRepo(db *pgxpool.Pool) *LocationsRepo { return &LocationsRepo{db: db} }

// Location loads a CPO location with its EVSEs; nil, nil if unknown.
func (r *LocationsRepo) Location(ctx context.Context, scope models.PartyScope, id string) (*models.Location, error) {
	row := r.db.QueryRow(ctx, `
		select location_id, name from locations
		where country_code=$1 and party_id=$2 and location_id=$3
	`, scope.CountryCode, scope.PartyId, id)

	l := models.Location{Scope: scope}
	if err := row.Scan(&l.Id, &l.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	rows, err := r.db.Query(ctx, `
		select uid, status from evses
		where country_code=$1 and party_id=$2 and location_id=$3
		order by uid
	`, scope.CountryCode, scope.PartyId, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var e models.Evse
		if err := rows.Scan(&e.Uid, &e.Status); err != nil {
			return nil, err
		}
		l.Evses = append(l.Evses, e)
	}
	return &l, rows.Err()
}

// Upsert replaces the location and its EVSE set in one transaction.
func (r *LocationsRepo) Upsert(ctx context.Context, l models.Location) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		insert into locations (country_code, party_id, location_id, name)
		values ($1,$2,$3,$4)
		on conflict (country_code, party_id, location_id) do update set
		  name=excluded.name,
		  updated_at=now()
	`, l.Scope.CountryCode, l.Scope.PartyId, l.Id, l.Name); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		delete from evses where country_code=$1 and party_id=$2 and location_id=$3
	`, l.Scope.CountryCode, l.Scope.PartyId, l.Id); err != nil {
		return err
	}
	for _, e := range l.Evses {
		if _, err := tx.Exec(ctx, `
			insert into evses (country_code, party_id, location_id, uid, status)
			values ($1,$2,$3,$4,$5)
		`, l.Scope.CountryCode, l.Scope.PartyId, l.Id, e.Uid, e.Status); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}
