/*
Package handler provides the HTTP routing and request handlers: REST CRUD
for accounts, conversations and messages, plus the WebSocket endpoint that
carries the real-time event stream.
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"pulsechat/internal/pkg/auth/jwt"
	"pulsechat/internal/pkg/limiter"
	"pulsechat/internal/pkg/logx"
	"pulsechat/internal/pkg/resp"
)

const (
	// AuthRate limits login/register attempts per IP.
	AuthRate  = 0.2
	AuthBurst = 5

	// ConnectRate limits WebSocket upgrades per IP.
	ConnectRate  = 0.5
	ConnectBurst = 10
)

// Router builds the application routing table with CORS, logging, rate
// limiting, and authentication middleware applied.
func Router(deps *AppDeps) http.Handler {
	authLimiter := limiter.NewIPRateLimiter(rate.Limit(AuthRate), AuthBurst)
	connectLimiter := limiter.NewIPRateLimiter(rate.Limit(ConnectRate), ConnectBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.Environment == "development" {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.Environment == "development" {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]string{
			"status":  "ok",
			"service": "PulseChat Server",
		})
	})

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(auth chi.Router) {
			auth.Use(jwt.IdentityExtractor(deps.Config.JWTSecret))
			auth.Method("POST", "/register", authLimiter.Middleware(HandleRegister(deps)))
			auth.Method("POST", "/login", authLimiter.Middleware(HandleLogin(deps)))
		})

		api.Group(func(private chi.Router) {
			private.Use(jwt.RequireAuth(deps.Config.JWTSecret))

			private.Route("/users", func(users chi.Router) {
				users.Get("/", HandleListUsers(deps))
				users.Put("/status", HandleUpdateStatus(deps))
				users.Post("/avatar/presign", HandlePresignAvatar(deps))
				users.Get("/username/{username}", HandleGetUserByUsername(deps))
				users.Get("/{id}", HandleGetUser(deps))
			})

			private.Route("/conversations", func(convs chi.Router) {
				convs.Get("/", HandleListConversations(deps))
				convs.Post("/", HandleCreateConversation(deps))
			})

			private.Route("/messages", func(msgs chi.Router) {
				msgs.Post("/", HandleCreateMessage(deps))
				msgs.Get("/{conversationID}", HandleListMessages(deps))
			})
		})
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, connectLimiter, deps))

	return r
}
