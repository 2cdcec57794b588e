// Package authz decides whether a token may start a charging session.
//
// The Engine either delegates fully to an external Hook or looks the token up
// locally and narrows the decision to the requested location and EVSEs. Every
// decision leaving the engine carries an authorization reference and a
// display text.
package authz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"emsp/internal/apperr"
	"emsp/internal/logging"
	"emsp/internal/metrics"
	"emsp/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type TokenDirectory interface {
	// TokenStatus returns nil, nil when the token is unknown in scope.
	TokenStatus(ctx context.Context, scope models.PartyScope, tokenId string) (*models.TokenStatus, error)
}

type LocationDirectory interface {
	// Location returns nil, nil when the location is unknown in scope.
	Location(ctx context.Context, scope models.PartyScope, locationId string) (*models.Location, error)
}

// Hook replaces the local decision entirely when registered.
type Hook interface {
	TryAuthorize(ctx context.Context, from, to models.PartyScope, tokenId string, loc *models.LocationReference) (models.AuthorizationInfo, error)
}

type Request struct {
	TokenId   string
	TokenType models.TokenType
	// From and To are the explicit OCPI routing scopes, if the caller sent them.
	From     *models.PartyScope
	To       *models.PartyScope
	Caller   models.AccessInfo
	Location *models.LocationReference
}

type Engine struct {
	tokens    TokenDirectory
	locations LocationDirectory
	hook      Hook
	self      models.PartyScope

	log          *zap.Logger
	metrics      *metrics.Metrics
	newReference func() string
	now          func() time.Time
}

type Option func(*Engine)

func WithHook(h Hook) Option { return func(e *Engine) { e.hook = h } }

func WithLogger(l *zap.Logger) Option { return func(e *Engine) { e.log = logging.OrNop(l) } }

func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

func WithReferenceGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newReference = fn
		}
	}
}

func WithClock(fn func() time.Time) Option {
	return func(e *Engine) {
		if fn != nil {
			e.now = fn
		}
	}
}

// NewEngine builds an engine answering for the EMSP identified by self.
func NewEngine(tokens TokenDirectory, locations LocationDirectory, self models.PartyScope, opts ...Option) *Engine {
	e := &Engine{
		tokens:       tokens,
		locations:    locations,
		self:         self,
		log:          zap.NewNop(),
		newReference: func() string { return uuid.NewString() },
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Authorize returns the finalized decision for req.
//
// An unknown token yields a zero AuthorizationInfo and an UNKNOWN_TOKEN error.
// Unknown locations, unknown EVSEs and an ambiguous CPO scope yield a
// finalized NOT_ALLOWED decision together with a not-found error.
func (e *Engine) Authorize(ctx context.Context, req Request) (models.AuthorizationInfo, error) {
	started := e.now()
	if req.TokenType == "" {
		req.TokenType = models.TokenRFID
	}
	to := e.self
	if req.To != nil && !req.To.IsZero() {
		to = *req.To
	}

	var (
		info models.AuthorizationInfo
		err  error
		path string
	)
	if e.hook != nil {
		path = "hook"
		info = e.viaHook(ctx, req, to)
	} else {
		path = "local"
		info, err = e.viaDirectories(ctx, req, to)
		if apperr.Is(err, apperr.CodeUnknownToken) {
			e.log.Info("authorization rejected: unknown token",
				zap.String("token_uid", req.TokenId),
				zap.String("token_type", string(req.TokenType)),
				zap.Stringer("scope", to))
			return models.AuthorizationInfo{}, err
		}
		if err != nil && info.Allowed == "" {
			return models.AuthorizationInfo{}, err
		}
	}

	e.finalize(&info, req, to, started)
	e.metrics.ObserveDecision(string(info.Allowed), path, info.Runtime)
	e.log.Debug("authorization decided",
		zap.String("token_uid", req.TokenId),
		zap.String("allowed", string(info.Allowed)),
		zap.String("path", path),
		zap.String("authorization_reference", info.AuthorizationReference),
		zap.Duration("runtime", info.Runtime))
	return info, err
}

func (e *Engine) viaHook(ctx context.Context, req Request, to models.PartyScope) models.AuthorizationInfo {
	from := models.PartyScope{}
	if req.From != nil {
		from = *req.From
	} else if cpos := req.Caller.CPOScopes(); len(cpos) == 1 {
		from = cpos[0]
	}

	info, err := e.callHook(ctx, from, to, req)
	if err != nil {
		e.log.Warn("authorization hook failed",
			zap.String("token_uid", req.TokenId),
			zap.Stringer("to", to),
			zap.Error(err))
		return models.AuthorizationInfo{
			Allowed: models.NotAllowed,
			Token: models.Token{
				CountryCode: to.CountryCode,
				PartyId:     to.PartyId,
				Uid:         req.TokenId,
				Type:        req.TokenType,
				Whitelist:   models.WhitelistNever,
				LastUpdated: e.now().UTC(),
			},
			Location: cloneRef(req.Location),
			Info:     models.NewDisplayText(models.LanguageEnglish, "Authorization failed: "+err.Error()),
		}
	}
	return info
}

func (e *Engine) callHook(ctx context.Context, from, to models.PartyScope, req Request) (info models.AuthorizationInfo, err error) {
	defer func() {
		if r := recover(); r != nil {
			info = models.AuthorizationInfo{}
			err = fmt.Errorf("authorization hook panicked: %v", r)
		}
	}()
	return e.hook.TryAuthorize(ctx, from, to, req.TokenId, cloneRef(req.Location))
}

func (e *Engine) viaDirectories(ctx context.Context, req Request, to models.PartyScope) (models.AuthorizationInfo, error) {
	status, err := e.tokens.TokenStatus(ctx, to, req.TokenId)
	if err != nil {
		return models.AuthorizationInfo{}, apperr.Internal(err, "token lookup failed")
	}
	if status == nil || status.Token.Type != req.TokenType {
		return models.AuthorizationInfo{}, apperr.UnknownToken(req.TokenId)
	}

	info := models.AuthorizationInfo{
		Allowed:                status.Allowed,
		Token:                  status.Token,
		Location:               cloneRef(status.Location),
		AuthorizationReference: e.newReference(),
	}
	if req.Location == nil {
		return info, nil
	}
	return e.narrow(ctx, info, req)
}

func (e *Engine) narrow(ctx context.Context, info models.AuthorizationInfo, req Request) (models.AuthorizationInfo, error) {
	requested := *req.Location

	var cpo models.PartyScope
	if req.From != nil && !req.From.IsZero() {
		cpo = *req.From
	} else {
		scopes := req.Caller.CPOScopes()
		if len(scopes) != 1 {
			info.Allowed = models.NotAllowed
			info.Location = cloneRef(&requested)
			info.Info = models.NewDisplayText(models.LanguageEnglish,
				"Could not determine the CPO of the given location, the scope is ambiguous!")
			return info, apperr.AmbiguousScope(len(scopes))
		}
		cpo = scopes[0]
	}

	loc, err := e.locations.Location(ctx, cpo, requested.LocationId)
	if err != nil {
		return models.AuthorizationInfo{}, apperr.Internal(err, "location lookup failed")
	}
	if loc == nil {
		info.Allowed = models.NotAllowed
		info.Location = cloneRef(&requested)
		info.Info = models.NewDisplayText(models.LanguageEnglish, "The given location is unknown!")
		return info, apperr.UnknownLocation(requested.LocationId)
	}

	if len(requested.EvseUids) == 0 {
		narrowed := requested.Clone()
		info.Location = &narrowed
		return info, nil
	}

	var known []string
	for _, uid := range requested.EvseUids {
		if loc.HasEvse(uid) {
			known = append(known, uid)
		}
	}
	if len(known) == 0 {
		info.Allowed = models.NotAllowed
		info.Location = cloneRef(&requested)
		info.Info = models.NewDisplayText(models.LanguageEnglish, unknownEvsesText(requested.EvseUids))
		return info, apperr.UnknownEvse(requested.LocationId, requested.EvseUids)
	}
	narrowed := requested.WithEvses(known)
	info.Location = &narrowed
	return info, nil
}

func (e *Engine) finalize(info *models.AuthorizationInfo, req Request, to models.PartyScope, started time.Time) {
	if info.AuthorizationReference == "" {
		info.AuthorizationReference = e.newReference()
	}
	if info.Info == nil || info.Info.Text == "" {
		info.Info = DecisionText(info.Allowed, info.Token.Language)
	}
	if info.EmspId == "" {
		info.EmspId = to.String()
	}
	if info.RemoteParty == "" {
		info.RemoteParty = req.Caller.RemoteParty
	}
	info.Runtime = e.now().Sub(started)
}

// unknownEvsesText phrases the rejection by the number of EVSEs originally requested.
func unknownEvsesText(uids []string) string {
	if len(uids) == 1 {
		return fmt.Sprintf("The EVSE '%s' is unknown!", uids[0])
	}
	return fmt.Sprintf("The EVSEs '%s' are unknown!", strings.Join(uids, "', '"))
}

func cloneRef(r *models.LocationReference) *models.LocationReference {
	if r == nil {
		return nil
	}
	c := r.Clone()
	return &c
}
