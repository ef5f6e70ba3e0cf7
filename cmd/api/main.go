package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/harentsoaR/clinic-scheduler/internal/config"
	"github.com/harentsoaR/clinic-scheduler/internal/handlers"
	"github.com/harentsoaR/clinic-scheduler/internal/repository"
	"github.com/harentsoaR/clinic-scheduler/internal/services"
	"github.com/harentsoaR/clinic-scheduler/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := utils.InitializeLogger(cfg.IsProduction(), cfg.LogLevel)
	defer logger.Sync()

	utils.SetJWTSecret(cfg.JWTSecret)

	// --- Database Connection ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		logger.Fatal("Failed to connect to MongoDB", zap.Error(err))
	}
	defer client.Disconnect(context.Background())
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		logger.Fatal("MongoDB ping failed", zap.Error(err))
	}
	db := client.Database(cfg.MongoDatabase)
	logger.Info("Successfully connected to MongoDB", zap.String("database", cfg.MongoDatabase))

	// --- Repositories ---
	appointmentRepo := repository.NewAppointmentRepository(db)
	doctorRepo := repository.NewDoctorRepository(db)
	treatmentRepo := repository.NewTreatmentRepository(db)
	patientRepo := repository.NewPatientRepository(db)
	userRepo := repository.NewUserRepository(db)

	if err := appointmentRepo.EnsureIndexes(ctx); err != nil {
		logger.Fatal("Failed to create appointment indexes", zap.Error(err))
	}
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		logger.Fatal("Failed to create user indexes", zap.Error(err))
	}

	var doctors services.DoctorStore = doctorRepo
	var treatments services.TreatmentStore = treatmentRepo
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			// The cache falls back to Mongo on every Redis error.
			logger.Warn("Redis unreachable, reference cache will miss", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		refCache := repository.NewReferenceCache(rdb, cfg.ReferenceCacheTTL, doctorRepo, treatmentRepo, logger.Named("cache"))
		doctors, treatments = refCache, refCache
	}

	// --- Initialize Services ---
	opts := []services.Option{}
	if cfg.SMSEnabled {
		notificationSvc := services.NewNotificationService(patientRepo, cfg.TextbeltAPIKey, cfg.Location(), logger)
		opts = append(opts, services.WithNotifier(notificationSvc))
	}
	bookingSvc := services.NewBookingService(appointmentRepo, doctors, treatments, cfg.Location(), logger, opts...)

	h := handlers.NewHandler(bookingSvc, appointmentRepo, userRepo, cfg.Location(), logger)

	// --- Gin Router ---
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r, err := handlers.NewRouter(h, handlers.RouterOptions{
		AllowedOrigins:     cfg.AllowedOrigins(),
		TrustedProxies:     cfg.TrustedProxies(),
		RateLimitPerMinute: cfg.RateLimitPerMinute,
	})
	if err != nil {
		logger.Fatal("Failed to build router", zap.Error(err))
	}

	logger.Info("Starting server", zap.String("port", cfg.APIPort), zap.String("timezone", cfg.Timezone))
	if err := r.Run(":" + cfg.APIPort); err != nil {
		logger.Fatal("Server stopped", zap.Error(err))
	}
}
