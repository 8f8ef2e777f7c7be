package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/vault/internal/metrics"
	"github.com/hitoshi/vault/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionResolver   middleware.SessionResolver
	Cookies           middleware.CookieConfig
	CORSAllowedOrigin string
	HSTS              bool
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 運用
	HealthChecker HealthChecker
	Metrics       metrics.MetricsCollector
	// Gatherer がnilの場合は/metricsを公開しない。
	Gatherer prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	AccountService  AccountServiceInterface
	GroupService    GroupServiceInterface
	FeedImporter    FeedImporter
	LinkService     LinkServiceInterface
	LinkMetaService LinkMetaServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Session → Logging → Metrics → RateLimit(General)
//
// Sessionは未認証でも通過させ、保護ルートはRequireAuthで401を返す。
// LoggingをSessionの内側に置くことでアクセスログにユーザーIDを含める。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.HSTS))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSessionMiddleware(deps.SessionResolver, deps.Cookies))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewMetricsMiddleware(collector))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, collector)
	accountHandler := NewAccountHandler(deps.AccountService, deps.Cookies)
	groupHandler := NewGroupHandler(deps.GroupService, deps.FeedImporter)
	linkHandler := NewLinkHandler(deps.LinkService)
	metaHandler := NewMetaHandler(deps.LinkMetaService)

	// --- 運用エンドポイント ---
	if deps.HealthChecker != nil {
		r.Get("/health", NewHealthHandler(deps.HealthChecker))
	}
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- 認証不要のルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/auth", func(r chi.Router) {
			r.Get("/google", authHandler.Login)
			r.Get("/google/callback", authHandler.Callback)
			r.Get("/me", authHandler.Me)
			r.Post("/logout", authHandler.Logout)
		})
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: RequireAuth → RateLimit(General) → RateLimit(Write)
	// クリック記録はRateLimit(Write)の対象外とし、API全般の制限のみ受ける。
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth())
		r.Use(deps.RateLimiter.GeneralMiddleware())
		write := deps.RateLimiter.WriteMiddleware()

		r.Route("/api/links", func(r chi.Router) {
			r.Get("/", linkHandler.List)
			r.Get("/preview", metaHandler.Preview)
			r.Post("/{id}/click", linkHandler.Click)

			r.Group(func(r chi.Router) {
				r.Use(write)
				r.Post("/", linkHandler.Create)
				r.Post("/bulk-delete", linkHandler.BulkDelete)
				r.Post("/bulk-move", linkHandler.BulkMove)
				r.Delete("/{id}", linkHandler.Delete)
				r.Patch("/{id}/pin", linkHandler.Pin)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(write)

			r.Route("/api/account", func(r chi.Router) {
				r.Get("/stats", accountHandler.Stats)
				r.Post("/delete-all-links", accountHandler.DeleteAllLinks)
				r.Post("/delete", accountHandler.Delete)
			})

			r.Route("/api/groups", func(r chi.Router) {
				r.Get("/", groupHandler.List)
				r.Post("/", groupHandler.Create)

				r.Route("/{id}", func(r chi.Router) {
					r.Delete("/", groupHandler.Delete)
					r.Post("/import", groupHandler.Import)
				})
			})

			r.Get("/api/favicon", metaHandler.Favicon)
		})
	})

	return r
}
