package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	_ "net/http/pprof" // Для профилирования памяти
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"google.golang.org/grpc"

	"pizzaria/internal/api"
	"pizzaria/internal/assistant"
	"pizzaria/internal/auth"
	"pizzaria/internal/config"
	"pizzaria/internal/database"
	"pizzaria/internal/models"
	"pizzaria/internal/services"
	"pizzaria/internal/storage"
	"pizzaria/internal/utils"
)

func main() {
	// Загружаем переменные окружения из .env файла (если существует)
	// Игнорируем ошибку, если файл не найден (для production окружений)
	if err := godotenv.Load(); err != nil {
		log.Printf("ℹ️ .env файл не найден, используем переменные окружения системы")
	} else {
		log.Printf("✅ Переменные окружения загружены из .env файла")
	}

	cfg := config.Load()
	log.Printf("📋 DATABASE_URL установлен: %s", safeURL(cfg.DatabaseURL))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Подключение к PostgreSQL. Без БД склад не работает, поэтому ошибка фатальна
	db, err := database.ConnectPostgres(cfg.DatabaseURL, !cfg.IsProduction())
	if err != nil {
		log.Fatalf("❌ PostgreSQL connection failed: %v", err)
	}
	defer database.ClosePostgres(db)

	if cfg.AutoMigrate {
		if err := models.AutoMigrate(db); err != nil {
			log.Fatalf("❌ Migration failed: %v", err)
		}
		log.Println("✅ Database migrations completed")
	}

	// Подключение к Redis (с поддержкой Sentinel). Redis необязателен: кэш мощности и pub/sub отключаются
	var redisUtil *utils.RedisClient
	redisClient, err := database.ConnectRedis(cfg.RedisURL, cfg.RedisSentinelAddrs, cfg.RedisMasterName)
	if err != nil {
		log.Printf("⚠️ Redis connection failed: %v (continuing without Redis)", err)
	} else {
		redisUtil = utils.NewRedisClient(redisClient)
		defer database.CloseRedis(redisClient)
	}

	// События склада: Kafka, иначе Redis pub/sub
	events := services.NewEventPublisher(redisUtil)
	if writer := api.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaStockTopic, cfg.KafkaUsername, cfg.KafkaPassword, cfg.KafkaCACert); writer != nil {
		events.SetKafkaWriter(writer)
		log.Printf("📡 Kafka writer: топик %s, брокеры %s", cfg.KafkaStockTopic, cfg.KafkaBrokers)
	} else {
		log.Printf("⚠️ KAFKA_BROKERS не установлен, события склада идут через Redis pub/sub")
	}
	defer events.Close()

	var capacityCache *services.CapacityCache
	if redisUtil != nil {
		capacityCache = services.NewCapacityCache(redisUtil, cfg.CapacityCacheTTL)
	}

	// Сервисы
	tenantService := services.NewTenantService(db, cfg.TrialDays)
	if redisUtil != nil {
		tenantService.SetRedisUtil(redisUtil)
	}

	recipeService := services.NewRecipeService(db)
	recipeService.SetEventPublisher(events)
	ingredientService := services.NewIngredientService(db)
	ingredientService.SetRecipeService(recipeService)
	ingredientService.SetEventPublisher(events)
	saleService := services.NewSaleService(db, recipeService)
	saleService.SetEventPublisher(events)
	if capacityCache != nil {
		recipeService.SetCapacityCache(capacityCache)
		ingredientService.SetCapacityCache(capacityCache)
		saleService.SetCapacityCache(capacityCache)
	}
	log.Println("✅ Stock services initialized")

	insightsService := services.NewInsightsService(db, recipeService)
	chatService := services.NewChatService(db)

	importExportService := services.NewImportExportService(ingredientService)
	if cfg.S3Enabled() {
		s3Storage, err := storage.NewS3Storage(ctx, storage.S3Config{
			Endpoint:      cfg.S3Endpoint,
			AccessKey:     cfg.S3AccessKey,
			SecretKey:     cfg.S3SecretKey,
			Bucket:        cfg.S3Bucket,
			PublicBaseURL: cfg.S3PublicBaseURL,
		})
		if err != nil {
			log.Printf("⚠️ S3 storage disabled: %v", err)
		} else {
			importExportService.SetUploader(s3Storage)
			log.Printf("☁️ Выгрузки сохраняются в бакет %s", cfg.S3Bucket)
		}
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	authService := services.NewAuthService(db, tokens)
	if err := authService.EnsurePlatformAdmin(cfg.PlatformAdminEmail, cfg.PlatformAdminPassword); err != nil {
		log.Printf("⚠️ Не удалось создать администратора платформы: %v", err)
	}

	// AI ассистент: без ключей работает только разбор команд
	assistantClient := assistant.NewClient(ctx, assistant.Config{
		Providers:     cfg.AIProviders,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIModel:   cfg.OpenAIModel,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		GeminiAPIKey:  cfg.GeminiAPIKey,
		GeminiModel:   cfg.GeminiModel,
		Timeout:       cfg.AITimeout,
		Temperature:   cfg.AITemperature,
	})
	executor := assistant.NewExecutor(ingredientService, recipeService)
	executor.SetExporter(importExportService)

	// WebSocket хаб дашбордов
	hub := api.NewHub()
	go hub.Run(ctx)

	if cfg.KafkaBrokers != "" {
		consumer := api.NewKafkaWSConsumer(cfg.KafkaBrokers, cfg.KafkaStockTopic, hub, cfg.KafkaUsername, cfg.KafkaPassword, cfg.KafkaCACert)
		consumer.Start()
		defer consumer.Stop()
	} else if redisUtil != nil {
		api.StartRedisStockListener(ctx, redisUtil, hub)
	}

	go tenantService.StartTrialExpiryWorker(ctx, time.Hour)

	// Контроллеры
	authController := api.NewAuthController(authService, tenantService)
	adminController := api.NewAdminController(tenantService)
	ingredientController := api.NewIngredientController(ingredientService)
	stockController := api.NewStockController(ingredientService)
	recipeController := api.NewRecipeController(recipeService)
	saleController := api.NewSaleController(saleService)
	capacityController := api.NewCapacityController()
	insightsController := api.NewInsightsController(insightsService)
	importExportController := api.NewImportExportController(importExportService)
	chatController := api.NewChatController(assistantClient, executor, insightsService, chatService)
	chatController.SetBroadcaster(hub)
	wsController := api.NewWSController(hub, tokens, tenantService)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	// Health check endpoint (до CORS и логирования)
	r.GET("/api/v1/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":     "ok",
			"service":    "Pizzaria Stock Server",
			"version":    "1.0.0",
			"ws_clients": hub.GetTotalClients(),
		})
	})

	r.Use(api.RequestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	apiGroup := r.Group("/api/v1")

	// Авторизация
	authGroup := apiGroup.Group("/auth")
	{
		authGroup.POST("/login", authController.Login)             // Вход сотрудника пиццерии
		authGroup.POST("/register", authController.Register)       // Регистрация пиццерии (пробный период)
		authGroup.POST("/admin/login", authController.AdminLogin) // Вход администратора платформы
		authGroup.GET("/me", api.AuthMiddleware(tokens), authController.Me)
	}

	// Расчеты без БД
	capacityGroup := apiGroup.Group("/capacity")
	{
		capacityGroup.POST("/calculate", capacityController.Calculate)
		capacityGroup.POST("/validate-sale", capacityController.ValidateSale)
		capacityGroup.GET("/stock-status", capacityController.ClassifyStock)
	}

	// Данные пиццерии: нужен токен и рабочий статус арендатора
	tenantGroup := apiGroup.Group("")
	tenantGroup.Use(api.AuthMiddleware(tokens), api.TenantGuard(tenantService))
	manage := api.RequireStockManager()
	{
		ingredients := tenantGroup.Group("/ingredients")
		{
			ingredients.GET("", ingredientController.List)
			ingredients.GET("/low-stock", stockController.LowStock)
			ingredients.GET("/:id", ingredientController.Get)
			ingredients.GET("/:id/movements", stockController.Movements)
			ingredients.POST("", manage, ingredientController.Create)
			ingredients.PUT("/:id", manage, ingredientController.Update)
			ingredients.DELETE("/:id", manage, ingredientController.Delete)
			ingredients.POST("/:id/restore", manage, ingredientController.Restore)
			ingredients.POST("/:id/stock-entries", manage, stockController.AddEntry) // Поступление
			ingredients.POST("/:id/adjust", manage, stockController.Adjust)          // Инвентаризация
			ingredients.POST("/import", manage, importExportController.Import)
			ingredients.GET("/export", importExportController.Export)
			ingredients.POST("/export/upload", manage, importExportController.Upload)
		}
		tenantGroup.GET("/stock/movements", stockController.Movements)

		recipes := tenantGroup.Group("/recipes")
		{
			recipes.GET("", recipeController.GetRecipes)
			recipes.GET("/capacity", recipeController.GetCapacityOverview)
			recipes.POST("/capacity/refresh", manage, recipeController.RefreshCapacities)
			recipes.GET("/:id", recipeController.GetRecipe)
			recipes.GET("/:id/capacity", recipeController.GetCapacity)
			recipes.GET("/:id/cost", recipeController.GetCost)
			recipes.POST("", manage, recipeController.CreateRecipe)
			recipes.PUT("/:id", manage, recipeController.UpdateRecipe)
			recipes.DELETE("/:id", manage, recipeController.DeleteRecipe)
			recipes.POST("/:id/restore", manage, recipeController.RestoreRecipe)
		}

		sales := tenantGroup.Group("/sales")
		{
			sales.GET("", saleController.List)
			sales.POST("", saleController.Record)
			sales.POST("/validate", saleController.Validate)
		}

		tenantGroup.GET("/insights", insightsController.Dashboard)
		tenantGroup.GET("/insights/snapshot", insightsController.Snapshot)

		chat := tenantGroup.Group("/chat")
		{
			chat.POST("", chatController.Send)
			chat.GET("/history", chatController.History)
			chat.DELETE("/history", chatController.Clear)
		}

		users := tenantGroup.Group("/users")
		{
			users.GET("", manage, authController.ListUsers)
			users.POST("", api.RequireRole(models.RoleOwner), authController.CreateUser)
		}
	}

	// Администрирование платформы
	adminGroup := apiGroup.Group("/admin")
	adminGroup.Use(api.AuthMiddleware(tokens), api.RequirePlatformAdmin())
	{
		adminGroup.GET("/stats", adminController.GetStats)
		adminGroup.GET("/tenants", adminController.ListTenants)
		adminGroup.POST("/tenants", adminController.CreateTenant)
		adminGroup.GET("/tenants/:id", adminController.GetTenant)
		adminGroup.PUT("/tenants/:id/plan", adminController.ChangePlan)
		adminGroup.POST("/tenants/:id/extend-trial", adminController.ExtendTrial)
		adminGroup.PUT("/tenants/:id/status", adminController.ChangeStatus)
		adminGroup.POST("/tenants/:id/reactivate", adminController.Reactivate)
		adminGroup.POST("/tenants/expire-trials", adminController.ExpireTrials)
	}

	// WebSocket для дашбордов (токен в ?token=)
	apiGroup.GET("/ws", wsController.ServeWS)

	// gRPC сервис мощности
	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(api.CapacityAuthInterceptor(tokens, tenantService)))
	api.RegisterCapacityServiceServer(grpcServer, api.NewCapacityGRPCServer(recipeService, saleService))
	go func() {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			log.Fatalf("failed to listen gRPC: %v", err)
		}
		log.Printf("📡 gRPC Server starting on port %s", cfg.GRPCPort)
		if err := grpcServer.Serve(lis); err != nil {
			log.Printf("⚠️ gRPC server stopped: %v", err)
		}
	}()

	// pprof только вне production
	if !cfg.IsProduction() {
		go func() {
			pprofPort := "6060"
			log.Printf("🔍 pprof доступен на http://localhost:%s/debug/pprof/", pprofPort)
			if err := http.ListenAndServe("localhost:"+pprofPort, nil); err != nil {
				log.Printf("⚠️ pprof server failed to start: %v", err)
			}
		}()
	}

	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logMemoryStats()
			}
		}
	}()

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("🚀 Server starting on port %s", cfg.ServerPort)
		log.Printf("📡 API доступен на http://0.0.0.0:%s/api/v1", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("🛑 Получен сигнал остановки, завершаем работу...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("⚠️ HTTP shutdown: %v", err)
	}
	grpcServer.GracefulStop()
	log.Println("✅ Сервер остановлен")
}

// safeURL скрывает пароль в строке подключения
func safeURL(raw string) string {
	idx := strings.Index(raw, "@")
	schemeIdx := strings.Index(raw, "://")
	if idx > 0 && schemeIdx > 0 && schemeIdx < idx {
		return raw[:schemeIdx+3] + "***@" + raw[idx+1:]
	}
	return raw
}

// logMemoryStats логирует текущую статистику использования памяти
func logMemoryStats() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	heapAllocMB := float64(m.HeapAlloc) / 1024 / 1024
	numGoroutines := runtime.NumGoroutine()
	log.Printf("💾 Memory Stats: HeapAlloc=%.2f MB, Sys=%.2f MB, GC=%d, Goroutines=%d",
		heapAllocMB, float64(m.Sys)/1024/1024, m.NumGC, numGoroutines)

	if heapAllocMB > 500 {
		log.Printf("⚠️ WARNING: High memory usage detected: %.2f MB (possible memory leak)", heapAllocMB)
	}
}
