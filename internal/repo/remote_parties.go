package repo

import (
	"context"
	"encoding/json"
	"errors"

	"emsp/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RemotePartiesRepo struct{ db *pgxpool.Pool }

func NewRemotePartiesRepo(db *pgxpool.Pool) *RemotePartiesRepo { return &RemotePartiesRepo{db: db} }

type roleRow struct {
	Role        models.Role `json:"role"`
	CountryCode string      `json:"country_code"`
	PartyId     string      `json:"party_id"`
}

type localAccessRow struct {
	TokenHash string              `json:"token_hash"`
	Status    models.AccessStatus `json:"status"`
}

type remoteAccessRow struct {
	VersionsURL string              `json:"versions_url"`
	Token       string              `json:"token"`
	Status      models.AccessStatus `json:"status"`
}

const remotePartyColumns = `country_code, party_id, role, name, roles, local_access, remote_access`

func (r *RemotePartiesRepo) Upsert(ctx context.Context, p models.RemoteParty) error {
	roles := make([]roleRow, 0, len(p.Roles))
	for _, cr := range p.Roles {
		roles = append(roles, roleRow{Role: cr.Role, CountryCode: cr.Scope.CountryCode, PartyId: cr.Scope.PartyId})
	}
	local := make([]localAccessRow, 0, len(p.LocalAccess))
	for _, la := range p.LocalAccess {
		local = append(local, localAccessRow{TokenHash: la.AccessTokenHash, Status: la.Status})
	}
	remote := make([]remoteAccessRow, 0, len(p.RemoteAccess))
	for _, ra := range p.RemoteAccess {
		remote = append(remote, remoteAccessRow{VersionsURL: ra.VersionsURL, Token: ra.AccessToken, Status: ra.Status})
	}
	rolesJSON, err := json.Marshal(roles)
	if err != nil {
		return err
	}
	localJSON, err := json.Marshal(local)
	if err != nil {
		return err
	}
	remoteJSON, err := json.Marshal(remote)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, `
		insert into remote_parties (country_code, party_id, role, name, roles, local_access, remote_access)
		values ($1,$2,$3,$4,$5,$6,$7)
		on conflict (country_code, party_id, role) do update set
		  name=excluded.name,
		  roles=excluded.roles,
		  local_access=excluded.local_access,
		  remote_access=excluded.remote_access,
		  updated_at=now()
	`, p.Id.CountryCode, p.Id.PartyId, p.Id.Role, p.Name, rolesJSON, localJSON, remoteJSON)
	return err
}

// RemoteParty returns nil, nil for unknown parties.
func (r *RemotePartiesRepo) RemoteParty(ctx context.Context, id models.RemotePartyId) (*models.RemoteParty, error) {
	row := r.db.QueryRow(ctx, `
		select `+remotePartyColumns+`
		from remote_parties where country_code=$1 and party_id=$2 and role=$3
	`, id.CountryCode, id.PartyId, id.Role)
	return scanRemoteParty(row)
}

// ByAccessToken finds the party holding an enabled local credential with the
// given token hash.
func (r *RemotePartiesRepo) ByAccessToken(ctx context.Context, tokenHash string) (*models.RemoteParty, error) {
	probe, err := json.Marshal([]localAccessRow{{TokenHash: tokenHash, Status: models.AccessEnabled}})
	if err != nil {
		return nil, err
	}
	row := r.db.QueryRow(ctx, `
		select `+remotePartyColumns+`
		from remote_parties where local_access @> $1::jsonb
		limit 1
	`, probe)
	return scanRemoteParty(row)
}

func scanRemoteParty(row pgx.Row) (*models.RemoteParty, error) {
	var (
		p                        models.RemoteParty
		rolesJSON, local, remote []byte
	)
	if err := row.Scan(&p.Id.CountryCode, &p.Id.PartyId, &p.Id.Role, &p.Name, &rolesJSON, &local, &remote); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	var roles []roleRow
	if err := json.Unmarshal(rolesJSON, &roles); err != nil {
		return nil, err
	}
	for _, rr := range roles {
		p.Roles = append(p.Roles, models.CredentialsRole{Role: rr.Role, Scope: models.NewPartyScope(rr.CountryCode, rr.PartyId)})
	}
	var locals []localAccessRow
	if err := json.Unmarshal(local, &locals); err != nil {
		return nil, err
	}
	for _, la := range locals {
		p.LocalAccess = append(p.LocalAccess, models.LocalAccessInfo{AccessTokenHash: la.TokenHash, Status: la.Status})
	}
	var remotes []remoteAccessRow
	if err := json.Unmarshal(remote, &remotes); err != nil {
		return nil, err
	}
	for _, ra := range remotes {
		p.RemoteAccess = append(p.RemoteAccess, models.RemoteAccessInfo{VersionsURL: ra.VersionsURL, AccessToken: ra.Token, Status: ra.Status})
	}
	return &p, nil
}
