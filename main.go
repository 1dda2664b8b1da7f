// main.go
// Recycling Kiosk Operations API
// Firestore-backed task dispatch engine, aggregate ledger, QR sessions and
// the admin callable surface.

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"kioskops/auth"
	"kioskops/config"
	"kioskops/db"
	"kioskops/engine"
	"kioskops/handlers"
	"kioskops/mailer"
	"kioskops/middleware"
	"kioskops/models"
	"kioskops/shift"
	"kioskops/watcher"
)

// Global instances
var (
	cfg          *config.Config
	firestoreDB  *db.FirestoreDB
	jwtManager   *auth.JWTManager
	authHandler  *handlers.AuthHandler
	adminHandler *handlers.AdminHandler
	qrHandler    *handlers.QrHandler
	rateLimiter  *middleware.RateLimiter
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, using system environment variables")
	}

	// Load configuration
	cfg = config.Load()
	cfg.Validate()

	log.Printf("🚀 Starting Kiosk Operations API Server")
	log.Printf("📍 Environment: %s", cfg.Server.Environment)
	log.Printf("🔧 Port: %s", cfg.Server.Port)

	// Initialize Firestore
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var err error
	firestoreDB, err = db.NewFirestoreDB(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsPath, cfg.Ops.MaxBatchWrites)
	if err != nil {
		log.Fatalf("❌ Failed to initialize Firestore: %v", err)
	}
	defer firestoreDB.Close()

	// Initialize JWT Manager
	jwtManager = auth.NewJWTManager(
		cfg.JWT.Secret,
		cfg.JWT.Expiration,
		cfg.JWT.RefreshTokenExpiration,
	)
	log.Printf("🔐 JWT Manager initialized (expiration: %v)", cfg.JWT.Expiration)

	// Engine components
	tasks := engine.NewTasks(firestoreDB, cfg.Ops, nil)
	ledger := engine.NewLedger(firestoreDB, cfg.Ops, nil)
	handover := engine.NewHandover(firestoreDB, cfg.Ops, nil)
	sessions := engine.NewSessions(firestoreDB, cfg.Ops, nil)

	var sender mailer.Sender
	if cfg.SendGrid.APIKey != "" {
		sender = mailer.NewSendGridSender(cfg.SendGrid.APIKey)
	} else {
		log.Println("⚠️  SENDGRID_API_KEY not set, outbound email disabled")
		sender = mailer.NewMemorySender()
	}
	impact := engine.NewImpact(firestoreDB, sender, cfg.SendGrid.FromEmail)

	// Initialize handlers
	authHandler = handlers.NewAuthHandler(firestoreDB, jwtManager)
	adminHandler = handlers.NewAdminHandler(firestoreDB, ledger, handover, impact, sender, cfg.Ops, cfg.SendGrid.FromEmail)
	qrHandler = handlers.NewQrHandler(sessions)
	log.Printf("✅ Handlers initialized")

	// Initialize rate limiter
	rateLimiter = middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	rateLimiter.CleanupOldLimiters()
	log.Printf("🛡️  Rate limiter initialized (%d requests per %v)", cfg.RateLimit.Requests, cfg.RateLimit.Window)

	// Fire up the Firestore listeners that replace per-document triggers
	watcher.New(firestoreDB, tasks, ledger).Start(ctx)
	log.Printf("👂 Firestore listeners started")

	// Scheduled jobs, evaluated in the operating timezone
	scheduler := startScheduler(ctx, handover, sessions, impact)
	defer scheduler.Stop()

	// Set up router
	mux := http.NewServeMux()

	// Public routes (no authentication required)
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/api/login", authHandler.Login)
	mux.HandleFunc("/api/refresh", authHandler.RefreshToken)

	// Protected routes (authentication required)
	authMiddleware := middleware.AuthMiddleware(jwtManager, firestoreDB)

	// QR session endpoints
	kioskOrAdmin := middleware.RequireRole(models.RoleKiosk, models.RoleAdmin, models.RoleSuperAdmin)
	mux.Handle("/api/qr/create", authMiddleware(http.HandlerFunc(qrHandler.CreateSession)))
	mux.Handle("/api/qr/consume", authMiddleware(kioskOrAdmin(http.HandlerFunc(qrHandler.ConsumeSession))))

	// Admin endpoints (admin only)
	adminOnly := middleware.RequireRole(models.RoleAdmin, models.RoleSuperAdmin)
	mux.Handle("/api/admin/create-admin", authMiddleware(adminOnly(http.HandlerFunc(adminHandler.CreateAdmin))))
	mux.Handle("/api/admin/create-agent", authMiddleware(adminOnly(http.HandlerFunc(adminHandler.CreateAgent))))
	mux.Handle("/api/admin/delete-user", authMiddleware(adminOnly(http.HandlerFunc(adminHandler.DeleteUser))))
	mux.Handle("/api/admin/rebuild-aggregates", authMiddleware(adminOnly(http.HandlerFunc(adminHandler.RebuildAggregates))))
	mux.Handle("/api/admin/reassign-tasks", authMiddleware(adminOnly(http.HandlerFunc(adminHandler.ReassignTasks))))
	mux.Handle("/api/admin/send-impact-emails", authMiddleware(adminOnly(http.HandlerFunc(adminHandler.SendImpactEmails))))
	mux.Handle("/api/admin/send-test-email", authMiddleware(adminOnly(http.HandlerFunc(adminHandler.SendTestEmail))))
	mux.Handle("/api/admin/export/collection-logs", authMiddleware(adminOnly(http.HandlerFunc(adminHandler.ExportCollectionLogs))))

	// Apply global middleware
	handler := middleware.CORSMiddleware(cfg.CORS.AllowedOrigins)(mux)
	handler = rateLimiter.Middleware()(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("✅ Server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed to start: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("🛑 Shutting down server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("❌ Server forced to shutdown: %v", err)
	}

	log.Println("✅ Server stopped gracefully")
}

// startScheduler registers the cron jobs: shift handover at the shift
// boundaries, daily QR session cleanup, and the monthly impact mailing.
func startScheduler(ctx context.Context, handover *engine.Handover, sessions *engine.Sessions, impact *engine.Impact) *cron.Cron {
	resolver := shift.Resolver{Offset: cfg.Ops.TimezoneOffset, EndHour: cfg.Ops.ShiftEndHour}
	scheduler := cron.New(cron.WithLocation(cfg.Ops.Location()))

	mustSchedule(scheduler, cfg.Ops.HandoverSchedule, func() {
		target := resolver.AssignmentShift(time.Now())
		report := handover.Run(ctx, target)
		log.Printf("⏰ Scheduled handover done: shift=%s reassigned=%d", target, report.Reassigned)
	})

	mustSchedule(scheduler, cfg.Ops.CleanupSchedule, func() {
		if _, err := sessions.Cleanup(ctx); err != nil {
			log.Printf("❌ Scheduled session cleanup failed: %v", err)
		}
	})

	mustSchedule(scheduler, cfg.Ops.ImpactEmailSchedule, func() {
		if _, err := impact.SendReports(ctx); err != nil {
			log.Printf("❌ Scheduled impact mailing failed: %v", err)
		}
	})

	scheduler.Start()
	log.Printf("⏰ Scheduler started (handover=%q, cleanup=%q, impact=%q)",
		cfg.Ops.HandoverSchedule, cfg.Ops.CleanupSchedule, cfg.Ops.ImpactEmailSchedule)
	return scheduler
}

func mustSchedule(scheduler *cron.Cron, spec string, job func()) {
	if _, err := scheduler.AddFunc(spec, job); err != nil {
		log.Fatalf("❌ Invalid cron spec %q: %v", spec, err)
	}
}

// Health check endpoint
func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","timestamp":%d,"version":"1.0.0"}`, time.Now().Unix())
}
