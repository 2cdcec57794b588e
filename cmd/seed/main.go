package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"emsp/internal/config"
	"emsp/internal/db"
	"emsp/internal/models"
	"emsp/internal/repo"
	"emsp/internal/security"

	"go.uber.org/zap"
)

func main() {
	tokenUID := flag.String("token", "012345678", "RFID token uid owned by this EMSP")
	contract := flag.String("contract", "DE-GEF-C12345678-X", "contract id of the token")
	allowed := flag.String("allowed", "ALLOWED", "token status (ALLOWED, BLOCKED, EXPIRED, NO_CREDIT, NOT_ALLOWED)")
	lang := flag.String("lang", "en", "token UI language")
	cpo := flag.String("cpo", "DE-ABC_CPO", "remote CPO party id")
	cpoCredential := flag.String("cpo_credential", "devsecret", "credential the CPO presents to us (stored hashed)")
	cpoVersions := flag.String("cpo_versions_url", "http://localhost:9090/ocpi/versions", "CPO versions endpoint")
	cpoToken := flag.String("cpo_token", "cpo-token", "credential we present to the CPO")
	location := flag.String("location", "LOC1", "location id at the CPO")
	evses := flag.String("evses", "EVSE-1,EVSE-2", "comma separated EVSE uids of the location")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	d, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	defer d.Close()
	if err := d.Migrate(zap.NewNop()); err != nil {
		log.Fatal(err)
	}

	self := models.NewPartyScope(cfg.CountryCode, cfg.PartyId)
	err = repo.NewTokensRepo(d.Pool).Upsert(ctx, models.Token{
		CountryCode: self.CountryCode,
		PartyId:     self.PartyId,
		Uid:         *tokenUID,
		Type:        models.TokenRFID,
		ContractId:  *contract,
		Issuer:      self.PartyId,
		Valid:       true,
		Whitelist:   models.WhitelistAllowed,
		Language:    models.Language(*lang),
	}, models.AllowedType(strings.ToUpper(*allowed)))
	if err != nil {
		log.Fatal(err)
	}

	cpoId, err := models.ParseRemotePartyId(*cpo)
	if err != nil {
		log.Fatal(err)
	}
	err = repo.NewRemotePartiesRepo(d.Pool).Upsert(ctx, models.RemoteParty{
		Id:    cpoId,
		Name:  cpoId.String(),
		Roles: []models.CredentialsRole{{Role: models.RoleCPO, Scope: cpoId.Scope()}},
		LocalAccess: []models.LocalAccessInfo{
			{AccessTokenHash: security.HashSecretSHA256(*cpoCredential), Status: models.AccessEnabled},
		},
		RemoteAccess: []models.RemoteAccessInfo{
			{VersionsURL: *cpoVersions, AccessToken: *cpoToken, Status: models.AccessEnabled},
		},
	})
	if err != nil {
		log.Fatal(err)
	}

	loc := models.Location{Id: *location, Scope: cpoId.Scope(), Name: *location}
	for _, uid := range strings.Split(*evses, ",") {
		if uid = strings.TrimSpace(uid); uid != "" {
			loc.Evses = append(loc.Evses, models.Evse{Uid: uid, Status: "AVAILABLE"})
		}
	}
	if err := repo.NewLocationsRepo(d.Pool).Upsert(ctx, loc); err != nil {
		log.Fatal(err)
	}

	fmt.Println("Seeded token:", *tokenUID, "for", self, "and CPO:", cpoId, "with location", *location)
}
