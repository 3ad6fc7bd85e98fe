package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/DoyleJ11/uno-backend/internal/ws"
)

type Options struct {
	RequestTimeout time.Duration
	OriginPatterns []string
}

// Backend is everything the routes need: the HTTP operations plus the
// websocket stream.
type Backend interface {
	Store
	ws.Store
}

func SetupRoutes(s Backend, log *zap.Logger, opts Options) http.Handler {
	log = log.Named("http")
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 5 * time.Second
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)

	// Public routes
	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(s, log, ws.Options{
		OriginPatterns: opts.OriginPatterns,
		RequestTimeout: opts.RequestTimeout,
	}))

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(opts.RequestTimeout))

		r.Post("/games", CreateGame(s, log))
		r.Get("/games", ListGames(s, log))
		r.Route("/games/{id}", func(r chi.Router) {
			r.Get("/", GetGame(s, log))
			r.Post("/join", JoinGame(s, log))
			r.Post("/draw", DrawCard(s, log))
			r.Post("/play", PlayCard(s, log))
			r.Post("/skip", SkipTurn(s, log))
			r.Get("/hand", GetHand(s, log))
		})
		r.Get("/pending", ListPending(s, log))
		r.Get("/pending/{id}", GetPending(s, log))
	})
	return r
}

// RequestLogger logs one line per request once it has been served.
func RequestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				log.Info("request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
