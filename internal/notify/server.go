package notify

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	notifydb "github.com/willu/notify/internal/notify/db"
	"github.com/willu/notify/internal/stream"
	"github.com/willu/notify/pkg/event"
	"github.com/willu/notify/pkg/middleware"
)

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// queries はsqlcが生成したクエリ実行オブジェクト。
	queries *notifydb.Queries
	// db はSQLiteデータベース接続。
	db *sql.DB
	// jwtSecret はJWTトークンの署名・検証に使う共有シークレット。
	jwtSecret string
	// dispatcher はSSE配信コア。
	dispatcher *stream.Dispatcher
}

// NewServer は新しい通知サーバーを生成する。
// SQLiteデータベースの初期化と配信コアの構築を行う。
func NewServer(port string) (*Server, error) {
	dbPath := getEnvOr("NOTIFY_DB_PATH", "/data/notify.db")
	sqlDB, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := initSchema(sqlDB); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	jwtSecret := getEnvOr("JWT_SECRET", "dev-secret-key")
	frontendURL := getEnvOr("FRONTEND_URL", "http://localhost:3000")

	queries := notifydb.New(sqlDB)
	dispatcher := stream.NewDispatcher(
		stream.NewRegistry(),
		stream.NewEventCache(getIntEnvOr("EVENT_CACHE_LIMIT", stream.DefaultCacheLimit)),
		&notificationStore{queries: queries},
		&userDirectory{queries: queries},
		getDurationEnvOr("STREAM_IDLE_TIMEOUT", stream.DefaultIdleTimeout),
		getDurationEnvOr("STREAM_PUSH_TIMEOUT", stream.DefaultPushTimeout),
	)

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.CORS([]string{frontendURL}))

	s := &Server{
		router:     router,
		port:       port,
		queries:    queries,
		db:         sqlDB,
		jwtSecret:  jwtSecret,
		dispatcher: dispatcher,
	}
	s.setupRoutes()

	return s, nil
}

// Run はHTTPサーバーを起動する。
func (s *Server) Run() error {
	return s.router.Run(fmt.Sprintf(":%s", s.port))
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// ユーザー登録（認証不要、登録時にトークンを発行する）
	s.router.POST("/api/v1/users", s.handleCreateUser())

	api := s.router.Group("/api/v1")
	api.Use(middleware.JWTAuth(s.jwtSecret))
	{
		notifications := api.Group("/notifications")
		{
			// SSEによる通知ストリームの購読
			notifications.GET("/subscribe", s.handleSubscribe())
			// 通知一覧取得
			notifications.GET("", s.handleList())
			// 未読通知一覧取得
			notifications.GET("/unread", s.handleListUnread())
			// 通知を既読にする
			notifications.PUT("/:id/read", s.handleMarkAsRead())
			// 全通知を既読にする
			notifications.PUT("/read-all", s.handleMarkAllAsRead())
		}

		posts := api.Group("/posts")
		{
			// 投稿作成
			posts.POST("", s.handleCreatePost())
			// 投稿への参加リクエスト（投稿者に通知が届く）
			posts.POST("/:id/join", s.handleJoinRequest())
		}

		// 通知送信（内部API - ドメインアクションから呼び出される）
		internal := api.Group("/internal")
		{
			internal.POST("/send", s.handleSend())
		}
	}

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"service":     "notify",
			"connections": s.dispatcher.Connections(),
		})
	})
}

// handleSubscribe はSSEストリームの購読を処理するハンドラを返す。
//
// 認証済みユーザーの接続をDispatcherに登録し、このハンドラが書き込み
// ループとしてEmitterのイベントを接続へ流し続ける。クライアント切断・
// アイドルタイムアウト・書き込み失敗のどの経路でも終端遷移を起動して
// レジストリの後始末を保証する。
func (s *Server) handleSubscribe() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		// 再接続時はブラウザがLast-Event-IDヘッダーを送る。EventSourceを
		// 使わないクライアント向けにクエリパラメータも受け付ける。
		lastEventID := c.GetHeader("Last-Event-ID")
		if lastEventID == "" {
			lastEventID = c.Query("last_event_id")
		}

		em, err := s.dispatcher.Subscribe(c.Request.Context(), userID, lastEventID)
		if err != nil {
			if errors.Is(err, stream.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "購読の開始に失敗しました"})
			log.Printf("購読開始エラー: %v", err)
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")
		c.Writer.Flush()

		idle := time.NewTimer(em.IdleTimeout())
		defer idle.Stop()

		for {
			select {
			case env := <-em.Events():
				if err := sse.Encode(c.Writer, sse.Event{
					Event: "sse",
					Id:    env.ID,
					Data:  env.Data,
				}); err != nil {
					em.Complete()
					return
				}
				c.Writer.Flush()
				if !idle.Stop() {
					select {
					case <-idle.C:
					default:
					}
				}
				idle.Reset(em.IdleTimeout())
			case <-em.Done():
				return
			case <-idle.C:
				em.Expire()
				return
			case <-c.Request.Context().Done():
				em.Complete()
				return
			}
		}
	}
}

// notificationResponse は通知のJSONレスポンス構造。
type notificationResponse struct {
	// ID は通知の一意識別子。
	ID string `json:"id"`
	// ReceiverID は通知先のユーザーID。
	ReceiverID string `json:"receiver_id"`
	// PublisherID は通知元のユーザーID。システム通知の場合は空。
	PublisherID string `json:"publisher_id,omitempty"`
	// Category は通知カテゴリ。
	Category string `json:"category"`
	// Title は通知のタイトル。
	Title string `json:"title"`
	// Content は通知の本文。
	Content string `json:"content"`
	// IsRead は通知の既読状態。
	IsRead bool `json:"is_read"`
	// CreatedAt は通知の作成日時（RFC3339形式）。
	CreatedAt string `json:"created_at"`
}

// toNotificationResponse はDB行をJSONレスポンスに変換する。
func toNotificationResponse(n notifydb.Notification) notificationResponse {
	return notificationResponse{
		ID:          n.ID,
		ReceiverID:  n.ReceiverID,
		PublisherID: n.PublisherID,
		Category:    n.Category,
		Title:       n.Title,
		Content:     n.Content,
		IsRead:      n.IsRead != 0,
		CreatedAt:   n.CreatedAt.Format(time.RFC3339),
	}
}

// toNotificationResponses はDB行のスライスをJSONレスポンスのスライスに変換する。
func toNotificationResponses(notifications []notifydb.Notification) []notificationResponse {
	responses := make([]notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		responses = append(responses, toNotificationResponse(n))
	}
	return responses
}

// handleList は認証済みユーザーの通知一覧を返すハンドラを返す。
func (s *Server) handleList() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		notifications, err := s.queries.ListNotificationsByReceiverID(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知一覧の取得に失敗しました"})
			log.Printf("通知一覧取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toNotificationResponses(notifications))
	}
}

// handleListUnread は認証済みユーザーの未読通知一覧を返すハンドラを返す。
func (s *Server) handleListUnread() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		notifications, err := s.queries.ListUnreadNotifications(c.Request.Context(), userID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "未読通知一覧の取得に失敗しました"})
			log.Printf("未読通知一覧取得エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, toNotificationResponses(notifications))
	}
}

// handleMarkAsRead は指定された通知を既読にするハンドラを返す。
func (s *Server) handleMarkAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		notificationID := c.Param("id")

		// 通知の存在確認と所有者チェック
		n, err := s.queries.GetNotificationByID(c.Request.Context(), notificationID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "通知が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の取得に失敗しました"})
			log.Printf("通知取得エラー: %v", err)
			return
		}

		if n.ReceiverID != userID {
			c.JSON(http.StatusForbidden, gin.H{"error": "この通知を操作する権限がありません"})
			return
		}

		if err := s.queries.MarkAsRead(c.Request.Context(), notificationID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の既読処理に失敗しました"})
			log.Printf("通知既読処理エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "通知を既読にしました"})
	}
}

// handleMarkAllAsRead は認証済みユーザーの全通知を既読にするハンドラを返す。
func (s *Server) handleMarkAllAsRead() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		if err := s.queries.MarkAllAsRead(c.Request.Context(), userID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "全通知の既読処理に失敗しました"})
			log.Printf("全通知既読処理エラー: %v", err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"message": "全通知を既読にしました"})
	}
}

// sendRequest は通知送信リクエストのJSON構造。
type sendRequest struct {
	// PublisherID は通知元のユーザーID。システム通知の場合は省略可。
	PublisherID string `json:"publisher_id"`
	// ReceiverID は通知先のユーザーID。
	ReceiverID string `json:"receiver_id" binding:"required"`
	// Category は通知カテゴリ。
	Category string `json:"category" binding:"required"`
	// Title は通知のタイトル。
	Title string `json:"title" binding:"required"`
	// Content は通知の本文。
	Content string `json:"content" binding:"required"`
}

// handleSend は通知を永続化し、受信ユーザーの全接続へ配信するハンドラを返す。
// 内部API（他サービスや管理ツールから呼び出される）。
func (s *Server) handleSend() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req sendRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		category, err := event.ParseCategory(req.Category)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if err := s.dispatcher.Send(c.Request.Context(), req.PublisherID, req.ReceiverID, category, req.Title, req.Content); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の送信に失敗しました"})
			log.Printf("通知送信エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"message": "通知を送信しました"})
	}
}

// createUserRequest はユーザー登録リクエストのJSON構造。
type createUserRequest struct {
	// Nickname はユーザーの表示名。
	Nickname string `json:"nickname" binding:"required"`
	// Email はメールアドレス。
	Email string `json:"email"`
}

// handleCreateUser はユーザーを登録しJWTトークンを発行するハンドラを返す。
func (s *Server) handleCreateUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createUserRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		userID := uuid.New().String()
		if err := s.queries.CreateUser(c.Request.Context(), notifydb.CreateUserParams{
			ID:       userID,
			Nickname: req.Nickname,
			Email:    req.Email,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの作成に失敗しました"})
			log.Printf("ユーザー作成エラー: %v", err)
			return
		}

		token, err := middleware.GenerateJWT(s.jwtSecret, userID, req.Nickname)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークン生成に失敗しました"})
			log.Printf("JWT生成エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"user_id": userID,
			"token":   token,
		})
	}
}

// createPostRequest は投稿作成リクエストのJSON構造。
type createPostRequest struct {
	// Title は投稿のタイトル。
	Title string `json:"title" binding:"required"`
	// Content は投稿の本文。
	Content string `json:"content"`
}

// handleCreatePost は投稿を作成するハンドラを返す。
func (s *Server) handleCreatePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		var req createPostRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("リクエストが不正です: %v", err)})
			return
		}

		postID := uuid.New().String()
		if err := s.queries.CreatePost(c.Request.Context(), notifydb.CreatePostParams{
			ID:      postID,
			UserID:  userID,
			Title:   req.Title,
			Content: req.Content,
		}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "投稿の作成に失敗しました"})
			log.Printf("投稿作成エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"id": postID})
	}
}

// handleJoinRequest は投稿への参加リクエストを処理するハンドラを返す。
// 投稿者に参加リクエスト通知が配信される。
func (s *Server) handleJoinRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.GetUserID(c)
		if userID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "ユーザーIDが取得できません"})
			return
		}

		post, err := s.queries.GetPostByID(c.Request.Context(), c.Param("id"))
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "投稿が見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "投稿の取得に失敗しました"})
			log.Printf("投稿取得エラー: %v", err)
			return
		}

		user, err := s.queries.GetUserByID(c.Request.Context(), userID)
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "ユーザーが見つかりません"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "ユーザーの取得に失敗しました"})
			log.Printf("ユーザー取得エラー: %v", err)
			return
		}

		// TODO: 自分の投稿への参加リクエストを弾くチェックを追加する
		content := fmt.Sprintf("%sさんが「%s」への参加をリクエストしました", user.Nickname, post.Title)
		if err := s.dispatcher.Send(c.Request.Context(), user.ID, post.UserID, event.CategoryJoinRequest, "参加リクエスト通知", content); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "参加リクエストの送信に失敗しました"})
			log.Printf("参加リクエスト送信エラー: %v", err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"message": "参加リクエストを送信しました"})
	}
}

// getEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func getEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// getIntEnvOr は整数の環境変数を取得し、未設定・不正な場合はデフォルト値を返す。
func getIntEnvOr(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("環境変数 %s の値 %q が不正です。デフォルト値 %d を使用します", key, v, defaultValue)
		return defaultValue
	}
	return n
}

// getDurationEnvOr は時間の環境変数（例: "1h", "3s"）を取得し、
// 未設定・不正な場合はデフォルト値を返す。
func getDurationEnvOr(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("環境変数 %s の値 %q が不正です。デフォルト値 %v を使用します", key, v, defaultValue)
		return defaultValue
	}
	return d
}
