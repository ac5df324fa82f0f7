package main

import (
	"database/sql"
	"log"
	"os"
	"strings"
	"time"

	"moodweaver-api/handlers"
	"moodweaver-api/initializers"
	"moodweaver-api/middleware"
	"moodweaver-api/pkg/appenv"
	"moodweaver-api/pkg/insights"
	"moodweaver-api/pkg/notify"
	"moodweaver-api/repository"
	"moodweaver-api/store"
	"moodweaver-api/websocket"

	"github.com/gin-gonic/gin"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	// Local development convenience; missing file is fine.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	jwtSecret := os.Getenv("JWT_SECRET")
	if len(jwtSecret) < 32 {
		log.Fatal("JWT_SECRET must be set and at least 32 characters")
	}

	var db *sql.DB
	var err error
	for i := 0; i < 10; i++ {
		db, err = sql.Open("postgres", dbURL)
		if err == nil {
			err = db.Ping()
			if err == nil {
				break
			}
		}
		log.Printf("DB connection failed: %v, retrying in 2s...", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		log.Fatal("Could not connect to database:", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		log.Fatal("Migration driver error:", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://migrations", "postgres", driver)
	if err != nil {
		log.Fatal("Migration init error:", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		log.Fatal("Migration failed:", err)
	}

	if err := initializers.InitDefaults(db); err != nil {
		log.Fatal("Failed to initialize default data:", err)
	}

	if err := initializers.InitMinio(); err != nil {
		log.Fatal("Failed to initialize Minio:", err)
	}

	usersRepo := repository.NewUsersRepository(db)
	entriesRepo := repository.NewEntriesRepository(db)
	tagsRepo := repository.NewTagsRepository(db)

	analyzer, err := buildAnalyzer()
	if err != nil {
		log.Fatal("Failed to configure analyzer:", err)
	}

	feed := notify.NewFeed()
	images := initializers.NewImageStore()
	workflow := store.NewWorkflow(entriesRepo, images, tagsRepo, analyzer, feed)

	authHandler := handlers.NewAuthHandler(usersRepo, jwtSecret)
	entriesHandler := handlers.NewEntriesHandler(workflow, entriesRepo, tagsRepo)
	tagsHandler := handlers.NewTagsHandler(workflow, entriesRepo, tagsRepo)
	imagesHandler := handlers.NewImagesHandler(images)
	analyzeHandler := handlers.NewAnalyzeHandler(analyzer)
	wsServer := websocket.NewServer(entriesRepo, tagsRepo, feed)

	if os.Getenv("GIN_MODE") == "release" || appenv.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Structured request ID and JSON access logs
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.LoggerMiddleware())
	// Panic recovery
	r.Use(gin.Recovery())

	// Configure trusted proxies for correct client IP handling in production
	trustedProxies := os.Getenv("TRUSTED_PROXIES")
	if trustedProxies != "" {
		parts := strings.Split(trustedProxies, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if err := r.SetTrustedProxies(parts); err != nil {
			log.Fatalf("Invalid TRUSTED_PROXIES: %v", err)
		}
	} else {
		// Default to loopback only; override via TRUSTED_PROXIES in production
		_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})
	}

	r.Use(middleware.CORSMiddleware())
	// Apply rate limiting globally after CORS but before routes
	r.Use(middleware.RateLimitMiddleware())

	// Public endpoints
	r.GET("/health", handlers.HealthCheck)
	r.POST("/analyze-entry", analyzeHandler.AnalyzeEntry)

	// Public endpoints with stricter auth rate limit
	authPublic := r.Group("/", middleware.RateLimitAuthMiddleware())
	authPublic.POST("/register", authHandler.Register)
	authPublic.POST("/login", authHandler.Login)

	auth := r.Group("/", handlers.AuthMiddleware(jwtSecret))
	{
		auth.GET("/entries", entriesHandler.GetEntries)
		auth.POST("/entries", entriesHandler.CreateEntry)
		auth.GET("/entries/:id", entriesHandler.GetEntry)
		auth.PATCH("/entries/:id", entriesHandler.UpdateEntry)
		auth.DELETE("/entries/:id", entriesHandler.DeleteEntry)
		auth.POST("/entries/:id/analyze", entriesHandler.AnalyzeEntry)

		auth.GET("/tags", tagsHandler.GetTags)
		auth.POST("/tags", tagsHandler.AddTag)

		auth.POST("/upload-image", imagesHandler.UploadImage)
		auth.DELETE("/delete-image/:key", imagesHandler.DeleteImage)

		auth.GET("/ws", wsServer.ServeWS())
	}

	r.Run(":8080")
}

// buildAnalyzer picks the insight backend: a dedicated analysis service
// when AI_SERVICE_URL is set, otherwise direct model calls.
func buildAnalyzer() (insights.Analyzer, error) {
	if url := os.Getenv("AI_SERVICE_URL"); url != "" {
		return insights.NewClient(url, 90*time.Second), nil
	}
	return insights.NewGeneratorFromEnv()
}
