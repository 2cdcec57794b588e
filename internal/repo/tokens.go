package repo

import (
	"context"
	"errors"

	"emsp/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TokensRepo struct{ db *pgxpool.Pool }

func NewTokensRepo(db *pgxpool.Pool) *TokensRepo { return &TokensRepo{db: db} }

// TokenStatus returns nil, nil when scope does not own a token uid. The
// stored allowed value is returned as is.
func (r *TokensRepo) TokenStatus(ctx context.Context, scope models.PartyScope, uid string) (*models.TokenStatus, error) {
	row := r.db.QueryRow(ctx, `
		select country_code, party_id, uid, type, contract_id, issuer, valid, whitelist, coalesce(language,''), last_updated, allowed
		from tokens where country_code=$1 and party_id=$2 and uid=$3
	`, scope.CountryCode, scope.PartyId, uid)

	var s models.TokenStatus
	t := &s.Token
	if err := row.Scan(&t.CountryCode, &t.PartyId, &t.Uid, &t.Type, &t.ContractId, &t.Issuer, &t.Valid, &t.Whitelist, &t.Language, &t.LastUpdated, &s.Allowed); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

func (r *TokensRepo) Upsert(ctx context.Context, t models.Token, allowed models.AllowedType) error {
	if allowed == "" {
		allowed = models.Allowed
	}
	_, err := r.db.Exec(ctx, `
		insert into tokens (country_code, party_id, uid, type, contract_id, issuer, valid, whitelist, language, allowed, last_updated)
		values ($1,$2,$3,$4,$5,$6,$7,$8,nullif($9,''),$10,now())
		on conflict (country_code, party_id, uid) do update set
		  type=excluded.type,
		  contract_id=excluded.contract_id,
		  issuer=excluded.issuer,
		  valid=excluded.valid,
		  whitelist=excluded.whitelist,
		  language=excluded.language,
		  allowed=excluded.allowed,
		  last_updated=now()
	`, t.CountryCode, t.PartyId, t.Uid, t.Type, t.ContractId, t.Issuer, t.Valid, t.Whitelist, string(t.Language), allowed)
	return err
}
