// Package app はコマンドの実行とアプリケーション全体の依存関係の組み立てを行う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/vault/internal/account"
	"github.com/hitoshi/vault/internal/auth"
	"github.com/hitoshi/vault/internal/config"
	"github.com/hitoshi/vault/internal/database"
	"github.com/hitoshi/vault/internal/group"
	"github.com/hitoshi/vault/internal/handler"
	"github.com/hitoshi/vault/internal/importer"
	"github.com/hitoshi/vault/internal/link"
	"github.com/hitoshi/vault/internal/linkmeta"
	"github.com/hitoshi/vault/internal/logger"
	"github.com/hitoshi/vault/internal/metrics"
	"github.com/hitoshi/vault/internal/middleware"
	"github.com/hitoshi/vault/internal/repository"
	"github.com/hitoshi/vault/internal/security"
	"github.com/hitoshi/vault/internal/worker/cleanup"
)

// cleanupInterval はserve中に期限切れデータを削除する間隔。
const cleanupInterval = 24 * time.Hour

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたレベルでロガーを再設定する
	logger.SetupDefaultWithLevel(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。サブコマンドを省略した場合はserveとして起動する。
func Run(w io.Writer, args []string) error {
	root := NewRootCommand(w)
	root.SetArgs(args)
	return root.Execute()
}

// services はHTTPルーターとバックグラウンドジョブが使う依存関係。
type services struct {
	deps    *handler.RouterDeps
	cleanup *cleanup.CleanupJob
}

// buildServices はDB接続から全依存関係をワイヤリングする。
func buildServices(cfg *config.Config, db *sqlx.DB, reg *prometheus.Registry) *services {
	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	banRepo := repository.NewPostgresEmailBanRepo(db)
	groupRepo := repository.NewPostgresGroupRepo(db)
	linkRepo := repository.NewPostgresLinkRepo(db)

	// 2. 横断的サービスの初期化
	collector := metrics.NewCollector(reg)
	ssrfGuard := security.NewSSRFGuard(cfg.FetchTimeout, cfg.FetchMaxSize)
	sanitizer := security.NewTextSanitizer()

	// 3. ドメインサービスの初期化
	oauthProvider := auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		HTTPClient:   &http.Client{Timeout: cfg.FetchTimeout},
	})
	authService := auth.NewService(oauthProvider, userRepo, sessionRepo, banRepo,
		auth.ServiceConfig{SessionTTL: cfg.SessionTTL},
	)
	accountService := account.NewService(userRepo, linkRepo, sessionRepo, banRepo,
		account.Config{BanDuration: cfg.BanDuration},
	)
	groupService := group.NewService(groupRepo)
	linkService := link.NewService(linkRepo, collector)
	metaService := linkmeta.NewService(ssrfGuard, sanitizer, collector)
	importService := importer.NewService(ssrfGuard, groupRepo, linkRepo, sanitizer, collector, cfg.ImportMaxLinks)

	cookies := middleware.CookieConfig{
		Domain: cfg.CookieDomain,
		Secure: cfg.CookieSecure,
		MaxAge: cfg.SessionMaxAge(),
	}

	// 4. ルーター依存の構築
	deps := &handler.RouterDeps{
		SessionResolver:   authService,
		Cookies:           cookies,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		HSTS:              cfg.CookieSecure,
		RateLimiter: middleware.NewRateLimiter(
			middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitWrite),
		),
		Logger: slog.Default(),

		HealthChecker: db,
		Metrics:       collector,
		Gatherer:      reg,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:     cfg.BaseURL,
			RedirectURL: cfg.GoogleRedirectURL,
			Cookies:     cookies,
		},

		AccountService:  accountService,
		GroupService:    groupService,
		FeedImporter:    importService,
		LinkService:     linkService,
		LinkMetaService: metaService,
	}

	return &services{
		deps:    deps,
		cleanup: cleanup.NewCleanupJob(sessionRepo, banRepo, slog.Default()),
	}
}

// newRegistry はGoランタイムとプロセスのメトリクスを含むレジストリを生成する。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// openDB はDB接続を開き、疎通を確認する。
func openDB(ctx context.Context, databaseURL string) (*sqlx.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")
	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	svc := buildServices(cfg, db, newRegistry())
	defer svc.deps.RateLimiter.Stop()

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           handler.NewRouter(svc.deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// プレビュー・取り込みの外部取得時間を含める
		WriteTimeout: 15*time.Second + 2*cfg.FetchTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go svc.cleanup.Start(ctx, cleanupInterval)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.String("base_url", cfg.BaseURL),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runCleanup は期限切れのセッションと再登録禁止レコードを1回だけ削除する。
// cron等からの定期実行を想定する。
func runCleanup(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := openDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	job := cleanup.NewCleanupJob(
		repository.NewPostgresSessionRepo(db),
		repository.NewPostgresEmailBanRepo(db),
		slog.Default(),
	)
	if _, err := job.Run(ctx); err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// healthcheckPort はSERVER_PORTを返す。未設定なら8080。
func healthcheckPort() string {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		return port
	}
	return "8080"
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
