package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"mediastore/internal/clients"
	"mediastore/internal/config"
	"mediastore/internal/database"
	"mediastore/internal/middleware"
	"mediastore/internal/modules/media"
	jwtsvc "mediastore/internal/pkg/jwt"
	"mediastore/internal/repository"
	"mediastore/internal/resilience"
	"mediastore/internal/storage"
	"mediastore/internal/whatsapp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatal(err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatal(err)
	}

	provider, err := buildStorage(cfg)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("storage provider: %s", provider.Kind().DisplayName())

	mediaPolicy := resilience.NewPolicy("whatsapp-media", cfg.RateLimiter, cfg.Breaker, cfg.Retry)
	sessionPolicy := resilience.NewPolicy("whatsapp-session", cfg.RateLimiter, cfg.Breaker, cfg.Retry)
	orgPolicy := resilience.NewPolicy("organisation-client", cfg.RateLimiter, cfg.Breaker, cfg.Retry)
	userPolicy := resilience.NewPolicy("user-client", cfg.RateLimiter, cfg.Breaker, cfg.Retry)

	gateway := whatsapp.NewClient(whatsapp.Config{
		BaseURL:         cfg.WhatsApp.BaseURL,
		APIVersion:      cfg.WhatsApp.APIVersion,
		OutgoingEnabled: cfg.WhatsApp.OutgoingEnabled,
		Timeout:         cfg.WhatsApp.Timeout,
	}, mediaPolicy, sessionPolicy)

	orgClient := clients.NewOrganisationClient(clients.OrganisationConfig{
		BaseURL:         cfg.Organisation.BaseURL,
		OutgoingEnabled: cfg.Organisation.OutgoingEnabled,
		Timeout:         cfg.Organisation.Timeout,
	}, orgPolicy)

	userClient := clients.NewUserClient(clients.UserClientConfig{
		BaseURL:         cfg.User.BaseURL,
		OutgoingEnabled: cfg.User.OutgoingEnabled,
		Timeout:         cfg.User.Timeout,
	}, userPolicy)

	mediaRepo := repository.NewMediaRepository(db)
	validator := media.NewValidator(0, media.DefaultAllowedTypes())

	mediaService := media.NewService(
		mediaRepo,
		provider,
		gateway,
		orgClient,
		userClient,
		validator,
		media.Pagination{
			MinPageSize:     1,
			DefaultPageSize: cfg.Pagination.DefaultPageSize,
			MaxPageSize:     cfg.Pagination.MaxPageSize,
		},
	)
	mediaHandler := media.NewHandler(mediaService)

	j := jwtsvc.New(cfg.JWTSecret, cfg.JWTAccessTTL)

	r := gin.Default()
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorLogger())

	v1 := r.Group("/api/v1")
	{
		protected := v1.Group("/")
		protected.Use(middleware.Auth(j))
		if cfg.APIRateLimit.Enabled {
			protected.Use(middleware.RateLimit(resilience.NewRateLimiterRegistry(cfg.APIRateLimit.Limiter)))
		}
		{
			mediaHandler.RegisterRoutes(protected)
		}
	}

	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}

// buildStorage registers every configured backend and resolves the one
// selected by STORAGE_PROVIDER. An unknown or misconfigured selection
// fails startup.
func buildStorage(cfg *config.Config) (storage.Provider, error) {
	registry := storage.NewRegistry()

	local, err := storage.NewLocalProvider(cfg.Local.Root, cfg.Local.PublicBaseURL)
	if err != nil {
		return nil, err
	}
	registry.Register("local", local)

	if cfg.S3.Bucket != "" {
		s3, err := storage.NewS3Provider(storage.S3Config{
			Endpoint:                cfg.S3.Endpoint,
			AccessKey:               cfg.S3.AccessKey,
			SecretKey:               cfg.S3.SecretKey,
			UseSSL:                  cfg.S3.UseSSL,
			Bucket:                  cfg.S3.Bucket,
			Region:                  cfg.S3.Region,
			PublicBaseURL:           cfg.S3.PublicBaseURL,
			MultipartThresholdBytes: cfg.S3.MultipartThresholdBytes,
			PartSizeBytes:           uint64(cfg.S3.PartSizeBytes),
		})
		if err != nil {
			return nil, err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s3.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		registry.Register("s3", s3)
	}

	return registry.Resolve(cfg.StorageProvider)
}
