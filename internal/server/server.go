package server

import (
	"context"
	"log"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/oneceylon/oneceylon/internal/config"
	"github.com/oneceylon/oneceylon/internal/handler"
	"github.com/oneceylon/oneceylon/internal/middleware"
	"github.com/oneceylon/oneceylon/internal/repository"
	"github.com/oneceylon/oneceylon/internal/service"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

type Server struct {
	engine      *gin.Engine
	db          *gorm.DB
	redisClient *redis.Client
	cron        *cron.Cron
}

func NewServer(cfg *config.Config, db *gorm.DB, redisClient *redis.Client) *Server {
	userRepo := repository.NewUserRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	voteRepo := repository.NewVoteRepository(db)
	reputationRepo := repository.NewReputationRepository(db)
	badgeRepo := repository.NewBadgeRepository(db)
	tagBadgeRepo := repository.NewTagBadgeRepository(db)
	qualityRepo := repository.NewQualityRepository(db)
	rateLimitRepo := repository.NewRateLimitRepository(db)
	closureRepo := repository.NewClosureRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	notificationSvc := service.NewNotificationService(notificationRepo, redisClient)
	reputationSvc := service.NewReputationService(db, reputationRepo)
	badgeSvc := service.NewBadgeService(badgeRepo, userRepo, questionRepo, voteRepo, notificationSvc)
	tagBadgeSvc := service.NewTagBadgeService(tagBadgeRepo, notificationSvc)
	qualitySvc := service.NewQualityService(qualityRepo, notificationSvc)
	rateLimitSvc := service.NewRateLimitService(rateLimitRepo, userRepo)
	closureSvc := service.NewClosureService(questionRepo, closureRepo, tagBadgeRepo, qualitySvc, rateLimitSvc, notificationSvc)

	voteSvc := service.NewVoteService(db, voteRepo, userRepo, questionRepo,
		reputationSvc, rateLimitSvc, badgeSvc, tagBadgeSvc, qualitySvc, closureSvc, notificationSvc)
	qaSvc := service.NewQAService(questionRepo,
		reputationSvc, rateLimitSvc, qualitySvc, tagBadgeSvc, notificationSvc)
	userSvc := service.NewUserService(userRepo, reputationSvc, badgeSvc, cfg.JWTSecret)

	userHandler := handler.NewUserHandler(userSvc, reputationSvc)
	voteHandler := handler.NewVoteHandler(voteSvc)
	questionHandler := handler.NewQuestionHandler(qaSvc, closureSvc, qualitySvc)
	badgeHandler := handler.NewBadgeHandler(badgeSvc, tagBadgeSvc)
	notificationHandler := handler.NewNotificationHandler(notificationSvc, redisClient)

	router := gin.New()

	setupCORS(router)

	router.Use(gin.Recovery())
	router.Use(gin.Logger())

	authMiddleware := middleware.NewAuthMiddleware(userRepo)

	api := router.Group("/api")

	// Public routes (no auth required)
	auth := api.Group("/auth")
	{
		auth.POST("/register", userHandler.Register)
		auth.POST("/login", userHandler.Login)
	}

	// Protected routes
	protected := api.Group("")
	protected.Use(authMiddleware.RequireAuth())
	{
		// Question routes
		protected.POST("/questions", questionHandler.AskQuestion)
		protected.PUT("/questions/:question_id", questionHandler.EditQuestion)
		protected.POST("/questions/:question_id/answers", questionHandler.AnswerQuestion)
		protected.POST("/questions/:question_id/close-votes", questionHandler.CastCloseVote)
		protected.POST("/questions/:question_id/reopen-votes", questionHandler.CastReopenVote)
		protected.GET("/questions/:question_id/closure", questionHandler.ClosureStatus)
		protected.POST("/questions/:question_id/reopen",
			authMiddleware.RequireRole("admin", "moderator"), questionHandler.ReopenQuestion)
		protected.POST("/answers/:answer_id/accept", questionHandler.AcceptAnswer)

		// Vote routes
		protected.POST("/votes", voteHandler.CastVote)

		// Profile routes
		protected.GET("/profile/me", userHandler.GetProfile)
		protected.PUT("/profile", userHandler.UpdateProfile)
		protected.POST("/profile/verify-email", userHandler.VerifyEmail)
		protected.GET("/profile/reputation", userHandler.ReputationHistory)
		protected.GET("/profile/ban-status", questionHandler.BanStatus)
		protected.GET("/users/:user_id/reputation", userHandler.UserReputationHistory)

		// Badge routes
		protected.GET("/badges/me", badgeHandler.MyBadges)
		protected.GET("/badges/tags/:tag_id", badgeHandler.MyTagBadges)
		protected.POST("/badges/tags/:tag_id/reactivate", badgeHandler.ReactivateTagBadge)

		// Notification routes
		protected.GET("/notifications", notificationHandler.GetNotifications)
		protected.GET("/notifications/unread-count", notificationHandler.UnreadCount)
		protected.PUT("/notifications/:id/read", notificationHandler.MarkAsRead)
		protected.PUT("/notifications/read-all", notificationHandler.MarkAllAsRead)
		protected.GET("/notifications/ws", notificationHandler.HandleWebSocket)
	}

	scheduler := startScheduler(cfg, tagBadgeSvc, qualitySvc, closureSvc, rateLimitRepo)

	return &Server{
		engine:      router,
		db:          db,
		redisClient: redisClient,
		cron:        scheduler,
	}
}

func (s *Server) Run(addr string) error {
	return s.engine.Run(addr)
}

func (s *Server) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// startScheduler wires the periodic engines: gold badge freshness, strike
// improvement detection, close vote aging and rate limit log pruning.
func startScheduler(cfg *config.Config, tagBadgeSvc service.TagBadgeService, qualitySvc service.QualityService, closureSvc service.ClosureService, rateLimitRepo repository.RateLimitRepository) *cron.Cron {
	scheduler := cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DefaultLogger),
		cron.Recover(cron.DefaultLogger),
	))

	mustAdd(scheduler, cfg.FreshnessSweepSpec, "freshness sweep", func() {
		if err := tagBadgeSvc.FreshnessSweep(context.Background()); err != nil {
			log.Printf("Freshness sweep failed: %v", err)
		}
	})

	mustAdd(scheduler, cfg.ImprovementCheckSpec, "improvement check", func() {
		if err := qualitySvc.CheckForQualityImprovement(context.Background()); err != nil {
			log.Printf("Quality improvement check failed: %v", err)
		}
	})

	mustAdd(scheduler, cfg.CloseVoteAgingSpec, "close vote aging", func() {
		expired, err := closureSvc.ExpireOldCloseVotes(context.Background())
		if err != nil {
			log.Printf("Close vote aging failed: %v", err)
			return
		}
		if expired > 0 {
			log.Printf("Expired %d aged close votes", expired)
		}
	})

	mustAdd(scheduler, cfg.RateLimitPruneSpec, "rate limit prune", func() {
		cutoff := time.Now().AddDate(0, 0, -30)
		if err := rateLimitRepo.DeleteOlderThan(context.Background(), cutoff); err != nil {
			log.Printf("Rate limit prune failed: %v", err)
		}
	})

	scheduler.Start()
	return scheduler
}

func mustAdd(scheduler *cron.Cron, spec, name string, job func()) {
	if _, err := scheduler.AddFunc(spec, job); err != nil {
		log.Fatalf("invalid cron spec for %s (%q): %v", name, spec, err)
	}
}

func setupCORS(router *gin.Engine) {
	allowedOrigins := os.Getenv("ALLOWED_ORIGINS")
	var origins []string
	if allowedOrigins != "" {
		origins = strings.Split(allowedOrigins, ",")
	} else {
		origins = []string{"http://localhost:3000"}
	}

	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
}
