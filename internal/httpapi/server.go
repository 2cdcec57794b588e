package httpapi

import (
	"net/http"

	"emsp/internal/authz"
	"emsp/internal/config"
	"emsp/internal/correlate"
	"emsp/internal/dispatch"
	"emsp/internal/logging"
	"emsp/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const maxBodyBytes = 64 << 10

type Server struct {
	Cfg        config.Config
	Log        *zap.Logger
	Engine     *authz.Engine
	Correlator *correlate.Correlator
	Dispatcher *dispatch.Dispatcher
	Parties    PartyResolver
	Gatherer   prometheus.Gatherer
}

func NewServer(cfg config.Config, log *zap.Logger, engine *authz.Engine, correlator *correlate.Correlator, dispatcher *dispatch.Dispatcher, parties PartyResolver, gatherer prometheus.Gatherer) *Server {
	return &Server{
		Cfg:        cfg,
		Log:        logging.OrNop(log),
		Engine:     engine,
		Correlator: correlator,
		Dispatcher: dispatcher,
		Parties:    parties,
		Gatherer:   gatherer,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.Log))
	r.Use(middleware.Recoverer)

	r.Route("/ocpi/emsp/2.2", func(r chi.Router) {
		r.Use(s.resolveAccess)
		r.Post("/tokens/{tokenUID}/authorize", s.AuthorizeToken)
		for _, ct := range models.CommandTypes {
			r.Post("/commands/"+string(ct)+"/{commandId}", s.CommandCallback(ct))
		}
	})

	r.Route("/v1", func(r chi.Router) {
		r.Use(func(next http.Handler) http.Handler { return RequireBearer(s.Cfg.AdminAPIKey, next) })
		r.Post("/commands", s.DispatchCommand)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}
