package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/leetosc/quiz-aide/internal/config"
	"github.com/leetosc/quiz-aide/internal/export"
	"github.com/leetosc/quiz-aide/internal/handler"
	"github.com/leetosc/quiz-aide/internal/llm"
	"github.com/leetosc/quiz-aide/internal/middleware"
	pgRepo "github.com/leetosc/quiz-aide/internal/repository/postgres"
	redisRepo "github.com/leetosc/quiz-aide/internal/repository/redis"
	"github.com/leetosc/quiz-aide/internal/service"
	"github.com/leetosc/quiz-aide/internal/service/quizgen"
	"github.com/leetosc/quiz-aide/pkg/auth"
	"github.com/leetosc/quiz-aide/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Подключаемся к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database)
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	if err := database.MigrateDB(db, cfg.Database.MigrationsPath); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Redis хранит черновики, кэш публичных викторин и счетчики rate limit
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	log.Println("Successfully connected to Redis")

	// Репозитории
	quizRepo := pgRepo.NewQuizRepo(db)
	questionRepo := pgRepo.NewQuestionRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Провайдер LLM и генератор вопросов
	provider, err := llm.NewOpenAIProvider(llm.Config{
		Backend:    cfg.LLM.Provider,
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		Endpoint:   cfg.LLM.Endpoint,
		APIVersion: cfg.LLM.APIVersion,
	})
	if err != nil {
		log.Printf("Failed to initialize LLM provider: %v", err)
		os.Exit(1)
	}

	generator := quizgen.NewGenerator(provider).WithTitleModel(cfg.LLM.TitleModel)
	policy := quizgen.ModelPolicy{
		Allowed:              cfg.LLM.Models,
		Economy:              cfg.LLM.EconomyModel,
		AuthenticatedDefault: cfg.LLM.DefaultModel,
	}
	if len(policy.Allowed) == 0 {
		policy.Allowed = quizgen.DefaultModels
	}

	exporter := export.NewExporter(export.NewTemplateStore(cfg.Export.TemplatePath))

	var emailService service.EmailService = &service.NoopEmailService{}
	if cfg.Email.ResendAPIKey != "" {
		from := cfg.Email.FromEmail
		if cfg.Email.FromName != "" {
			from = fmt.Sprintf("%s <%s>", cfg.Email.FromName, cfg.Email.FromEmail)
		}
		resendService, err := service.NewResendEmailService(cfg.Email.ResendAPIKey, from)
		if err != nil {
			log.Printf("Failed to initialize email service: %v", err)
			os.Exit(1)
		}
		emailService = resendService
	} else {
		log.Println("RESEND_API_KEY не задан, отправка выгрузок по почте отключена")
	}

	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpirationHrs)
	if err != nil {
		log.Printf("Failed to initialize JWTService: %v", err)
		os.Exit(1)
	}

	// Сервисы
	quizService := service.NewQuizService(quizRepo, questionRepo, cacheRepo, exporter, emailService, generator)
	questionService := service.NewQuestionService(questionRepo, cacheRepo)
	generationService := service.NewGenerationService(generator, policy, cfg.Generation.CallTimeout(), exporter)
	draftService := service.NewDraftService(cacheRepo, generationService, quizService, generator, cfg.Generation.DraftTTL, cfg.Generation.LockTTL)

	// Обработчики
	quizHandler := handler.NewQuizHandler(quizService)
	questionHandler := handler.NewQuestionHandler(questionService)
	generationHandler := handler.NewGenerationHandler(generationService, draftService, cfg.CORS.AllowedOrigins, cfg.Generation.SyncBudget())

	authMiddleware := middleware.NewAuthMiddleware(jwtService)
	rateLimiter := middleware.NewRateLimiter(redisClient)
	anonLimit, userLimit := middleware.GenerationRateLimitConfigs(cfg.RateLimit.AnonymousPerMinute, cfg.RateLimit.AuthenticatedPerMinute)
	limitGeneration := rateLimiter.LimitGeneration(anonLimit, userLimit)
	limitPublic := rateLimiter.LimitByIP(middleware.PublicRateLimitConfig(cfg.RateLimit.PublicPerMinute))

	router := setupRouter(cfg, authMiddleware, limitGeneration, limitPublic, quizHandler, questionHandler, generationHandler)

	// Настраиваем HTTP сервер с тайм-аутами. Синхронная генерация укладывается в generation.sync_budget_sec < WriteTimeout.
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
		os.Exit(1)
	}

	log.Println("Server exited properly")
}

func setupRouter(
	cfg *config.Config,
	authMiddleware *middleware.AuthMiddleware,
	limitGeneration gin.HandlerFunc,
	limitPublic gin.HandlerFunc,
	quizHandler *handler.QuizHandler,
	questionHandler *handler.QuestionHandler,
	generationHandler *handler.GenerationHandler,
) *gin.Engine {
	router := gin.Default()

	isProduction := gin.Mode() == gin.ReleaseMode
	if isProduction {
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", handler.LimitWarningHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		// Генерация доступна анонимам: модель принудительно economy, лимит строже
		generate := api.Group("/generate")
		generate.Use(authMiddleware.OptionalAuth(), limitGeneration)
		{
			generate.POST("/question", generationHandler.GenerateQuestion)
			generate.POST("/quiz", generationHandler.CreateDraft)
			generate.GET("/ws", generationHandler.StreamGeneration)
		}

		api.POST("/export", authMiddleware.OptionalAuth(), limitPublic, generationHandler.Export)

		// Черновики
		drafts := api.Group("/drafts/:id")
		drafts.Use(authMiddleware.OptionalAuth(), middleware.ExtractUUIDParam("id", "draftID"))
		{
			drafts.GET("", generationHandler.GetDraft)
			drafts.POST("/questions", generationHandler.AddDraftQuestion)
			drafts.POST("/questions/generate", limitGeneration, generationHandler.GenerateDraftQuestion)
			drafts.PUT("/questions/:index", generationHandler.UpdateDraftQuestion)
			drafts.PUT("/questions/:index/answers/:answerIndex", generationHandler.UpdateDraftAnswer)
			drafts.DELETE("/questions/:index", generationHandler.DeleteDraftQuestion)
			drafts.POST("/questions/:index/regenerate", limitGeneration, generationHandler.RegenerateDraftQuestion)
			drafts.GET("/export", generationHandler.ExportDraft)
			drafts.POST("/save", authMiddleware.RequireAuth(), generationHandler.SaveDraft)
		}

		// Публичные ссылки
		public := api.Group("/public/quizzes/:shortId")
		public.Use(limitPublic)
		{
			public.GET("", quizHandler.GetPublicQuiz)
			public.GET("/export", quizHandler.ExportPublicQuiz)
		}

		// Сохраненные викторины
		quizzes := api.Group("/quizzes")
		quizzes.Use(authMiddleware.RequireAuth())
		{
			quizzes.GET("", quizHandler.ListQuizzes)
			quizzes.POST("", quizHandler.CreateQuiz)
			quizzes.POST("/title", limitGeneration, quizHandler.GenerateTitle)

			quizWithID := quizzes.Group("/:id")
			quizWithID.Use(middleware.ExtractUUIDParam("id", "quizID"))
			{
				quizWithID.GET("", quizHandler.GetQuiz)
				quizWithID.PATCH("", quizHandler.UpdateQuiz)
				quizWithID.DELETE("", quizHandler.DeleteQuiz)
				quizWithID.POST("/questions", quizHandler.AddQuestion)
				quizWithID.PUT("/questions/order", quizHandler.ReorderQuestions)
				quizWithID.DELETE("/questions/:questionId", middleware.ExtractUUIDParam("questionId", "questionID"), quizHandler.RemoveQuestion)
				quizWithID.GET("/export", quizHandler.ExportQuiz)
				quizWithID.POST("/export/email", quizHandler.EmailExport)
			}
		}

		// Банк вопросов
		questions := api.Group("/questions")
		questions.Use(authMiddleware.RequireAuth())
		{
			questions.GET("", questionHandler.ListQuestions)
			questions.GET("/subjects", questionHandler.ListSubjects)
			questions.POST("", questionHandler.CreateQuestion)

			questionWithID := questions.Group("/:id")
			questionWithID.Use(middleware.ExtractUUIDParam("id", "questionID"))
			{
				questionWithID.PUT("", questionHandler.UpdateQuestion)
				questionWithID.DELETE("", questionHandler.DeleteQuestion)
				questionWithID.POST("/star", questionHandler.ToggleStar)
			}
		}
	}

	return router
}
