package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/rising-multiplier/internal/metrics"
	"github.com/DoyleJ11/rising-multiplier/internal/ws"
)

type Deps struct {
	Round          ws.Round
	Hub            ws.Broadcaster
	Metrics        *metrics.Metrics
	History        RoundLister // nil disables /api/rounds
	Logger         *zap.Logger
	AllowedOrigins []string
	WSRateLimit    float64
	WSRateBurst    int
}

func SetupRoutes(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors(d.AllowedOrigins))

	// Public routes
	r.Get("/healthz", Healthz)
	r.Handle("/metrics", d.Metrics.Handler())
	r.Get("/ws", ws.Handler(ws.Config{
		Round:          d.Round,
		Hub:            d.Hub,
		Logger:         log.Named("ws"),
		OriginPatterns: d.AllowedOrigins,
		RateLimit:      d.WSRateLimit,
		RateBurst:      d.WSRateBurst,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", GetState(d.Round))
		r.Post("/round/reset", ResetRound(d.Round, log))
		if d.History != nil {
			r.Get("/rounds", ListRounds(d.History, log))
		}
	})
	return r
}
