package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/scholarvault/studylog/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// サービス
	SessionService   SessionServiceInterface
	ProgressService  ProgressServiceInterface
	StreakService    StreakServiceInterface
	AnalyticsService AnalyticsServiceInterface

	// Prometheusスクレイプハンドラー（nilの場合/metricsは公開しない）
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Identity → RateLimit(General)
//
// 学習イベントの書き込みルートにはイベント専用レート制限を追加する。
// /healthと/metricsは認証・レート制限の外側に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}

	sessionHandler := NewSessionHandler(deps.SessionService)
	progressHandler := NewProgressHandler(deps.ProgressService)
	streakHandler := NewStreakHandler(deps.StreakService)
	analyticsHandler := NewAnalyticsHandler(deps.AnalyticsService)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Identity → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewIdentityMiddleware())
		r.Use(deps.RateLimiter.GeneralMiddleware())

		eventLimit := deps.RateLimiter.EventMiddleware()

		// セッションライフサイクルイベント
		r.Route("/api/sessions", func(r chi.Router) {
			r.With(eventLimit).Post("/start", sessionHandler.Start)
			r.With(eventLimit).Post("/end", sessionHandler.End)
		})

		// ノート進捗イベント
		r.Route("/api/notes/{noteID}", func(r chi.Router) {
			r.Get("/", progressHandler.GetNote)
			r.With(eventLimit).Post("/start", progressHandler.StartNote)
			r.With(eventLimit).Post("/end", progressHandler.EndNote)
			r.Put("/completion", progressHandler.SetCompletion)
		})

		// 進捗照会
		r.Get("/api/progress", progressHandler.GetProgress)

		// ストリークとフリーズ
		r.Route("/api/streak", func(r chi.Router) {
			r.Get("/", streakHandler.Get)
			r.Post("/freeze", streakHandler.ActivateFreeze)
			r.Get("/freeze", streakHandler.FreezeStatus)
			r.Post("/freeze/grant", streakHandler.GrantTokens)
		})

		// ダッシュボード集計
		r.Route("/api/analytics", func(r chi.Router) {
			r.Get("/weekly", analyticsHandler.Weekly)
			r.Get("/monthly", analyticsHandler.Monthly)
			r.Get("/peak", analyticsHandler.Peak)
			r.Get("/subjects", analyticsHandler.Subjects)
			r.Get("/velocity", analyticsHandler.Velocity)
		})
	})

	return r
}
