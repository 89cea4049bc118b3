package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-manager/internal/auth"
	"github.com/ukydev/fleet-manager/internal/billing"
	"github.com/ukydev/fleet-manager/internal/booking"
	"github.com/ukydev/fleet-manager/internal/config"
	"github.com/ukydev/fleet-manager/internal/dashboard"
	"github.com/ukydev/fleet-manager/internal/db"
	"github.com/ukydev/fleet-manager/internal/fleet"
	"github.com/ukydev/fleet-manager/internal/handlers"
	"github.com/ukydev/fleet-manager/internal/inspection"
	"github.com/ukydev/fleet-manager/internal/middleware"
	"github.com/ukydev/fleet-manager/internal/models"
	"github.com/ukydev/fleet-manager/internal/telemetry"
	"go.mongodb.org/mongo-driver/mongo"
)

// services are the components the HTTP routes are built on.
type services struct {
	store      db.DocumentStore
	users      db.UserCollection
	auth       *auth.Service
	otp        *auth.OTPService
	aggregator *dashboard.Aggregator
	bookings   *booking.Lifecycle
	bills      *billing.Lifecycle
	fleet      *fleet.Service
	inspection *inspection.Service
}

func newServices(store db.DocumentStore, users db.UserCollection, otpStore auth.OTPStore, cfg *config.Config) *services {
	return &services{
		store:      store,
		users:      users,
		auth:       auth.NewService(cfg.JWTSecret, cfg.JWTExpiry),
		otp:        auth.NewOTPService(otpStore, auth.LogSender{}, cfg.OTPTTL),
		aggregator: dashboard.NewAggregator(store, dashboard.NewHub()),
		bookings:   booking.NewLifecycle(store),
		bills:      billing.NewLifecycle(store),
		fleet:      fleet.NewService(store),
		inspection: inspection.NewService(store),
	}
}

// newRouter registers every route. Each route is instrumented under its
// pattern and guarded by the role or permission it needs.
func newRouter(s *services, cfg *config.Config) http.Handler {
	authMw := middleware.NewAuthMiddleware(s.auth)
	authH := handlers.NewAuthHandler(s.auth, s.otp, s.users)
	dashH := handlers.NewDashboardHandler(s.aggregator, cfg.AllowedOrigins)
	billH := handlers.NewBillHandler(s.bills)
	bookingH := handlers.NewBookingHandler(s.bookings)
	fleetH := handlers.NewFleetHandler(s.fleet)
	inspH := handlers.NewInspectionHandler(s.inspection)

	perm := authMw.RequirePermission
	staff := authMw.RequireRole(models.RoleManager, models.RoleDriver)
	open := func(h http.Handler) http.Handler { return h }

	mux := http.NewServeMux()
	handle := func(pattern string, guard func(http.Handler) http.Handler, h http.HandlerFunc) {
		mux.Handle(pattern, middleware.Instrument(pattern, guard(h)))
	}

	handle("POST /api/auth/login", open, authH.Login)
	handle("POST /api/auth/otp/verify", open, authH.VerifyOTP)
	handle("POST /api/auth/register", open, authH.Register)
	handle("GET /api/auth/profile", open, authH.GetProfile)
	handle("PUT /api/auth/profile", open, authH.UpdateProfile)
	handle("POST /api/auth/change-password", open, authH.ChangePassword)

	handle("GET /api/dashboard", perm(models.ActionViewDashboard), dashH.Get)
	handle("POST /api/dashboard/refresh", perm(models.ActionViewDashboard), dashH.Refresh)
	handle("GET /api/dashboard/stream", perm(models.ActionViewDashboard), dashH.Stream)

	handle("GET /api/bookings", staff, bookingH.List)
	handle("GET /api/bookings/{id}", staff, bookingH.Get)
	handle("POST /api/bookings/{id}/status", staff, bookingH.Transition)

	handle("GET /api/bills", perm(models.ActionViewBills), billH.List)
	handle("GET /api/bills/{id}", perm(models.ActionViewBills), billH.Get)
	handle("GET /api/bills/{id}/pdf", perm(models.ActionViewBills), billH.PDF)
	handle("POST /api/bills/{id}/decision", perm(models.ActionDecideBill), billH.Decide)

	handle("GET /api/vehicles", staff, fleetH.ListVehicles)
	handle("POST /api/vehicles", perm(models.ActionManageFleet), fleetH.CreateVehicle)
	handle("PUT /api/vehicles/{id}/maintenance", perm(models.ActionManageFleet), fleetH.SetMaintenance)
	handle("GET /api/drivers", perm(models.ActionManageFleet), fleetH.ListDrivers)
	handle("POST /api/drivers", perm(models.ActionManageFleet), fleetH.CreateDriver)

	handle("POST /api/inspections", perm(models.ActionSubmitInspection), inspH.Submit)
	handle("GET /api/vehicles/{id}/inspections", staff, inspH.ListInspections)
	handle("POST /api/emergencies", perm(models.ActionRaiseEmergency), inspH.RaiseEmergency)
	handle("GET /api/vehicles/{id}/emergencies", staff, inspH.ListEmergencies)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	limiter := middleware.NewRateLimitMiddleware()
	return limiter.RateLimit(cfg.RateLimit, time.Minute)(authMw.Authenticate(mux))
}

// openStore connects the configured document store. The returned close
// function releases it.
func openStore(ctx context.Context, cfg *config.Config) (db.DocumentStore, db.UserCollection, func(), error) {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		client, err := db.ConnectMongoURI(cfg.MongoURI)
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() { disconnect(client) }
		users, err := db.NewMongoUserCollection(ctx, client.Database(cfg.MongoDB))
		if err != nil {
			closeFn()
			return nil, nil, nil, err
		}
		return db.NewMongoStore(client, cfg.MongoDB), users, closeFn, nil
	case config.BackendFirestore:
		store, err := db.NewFirestoreStore(ctx, cfg.FirestoreProjectID, cfg.FirestoreCredential)
		if err != nil {
			return nil, nil, nil, err
		}
		closeFn := func() {
			if err := store.Close(); err != nil {
				log.WithError(err).Warn("Failed to close Firestore client")
			}
		}
		return store, db.NewMemoryUserCollection(), closeFn, nil
	case config.BackendMemory:
		return db.NewMemoryStore(), db.NewMemoryUserCollection(), func() {}, nil
	default:
		return nil, nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func disconnect(client *mongo.Client) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		log.WithError(err).Warn("Failed to disconnect from MongoDB")
	}
}

// openOTPStore uses Redis when it answers and process memory otherwise.
func openOTPStore(ctx context.Context, cfg *config.Config) auth.OTPStore {
	client := auth.NewRedis(cfg.RedisAddr, cfg.RedisPassword)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.WithError(err).WithField("addr", cfg.RedisAddr).Warn("Redis unavailable, keeping OTP challenges in memory")
		_ = client.Close()
		return auth.NewMemoryOTPStore()
	}
	return &auth.RedisOTPStore{Client: client}
}

// ensureAdmin creates the bootstrap admin account when it is configured
// and missing.
func ensureAdmin(ctx context.Context, s *services, cfg *config.Config) error {
	if cfg.AdminUsername == "" || cfg.AdminPassword == "" {
		return nil
	}
	if _, err := s.users.FindUserByUsername(ctx, cfg.AdminUsername); err == nil {
		return nil
	}
	hash, err := s.auth.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}
	log.WithField("username", cfg.AdminUsername).Info("Creating bootstrap admin")
	return s.users.InsertUser(ctx, models.User{
		Username:     cfg.AdminUsername,
		Email:        cfg.AdminUsername + "@localhost.local",
		Phone:        cfg.AdminPhone,
		PasswordHash: hash,
		Role:         models.RoleAdmin,
		FirstName:    "Fleet",
		LastName:     "Admin",
	})
}

func run(ctx context.Context, cfg *config.Config) error {
	store, users, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.StoreBackend, err)
	}
	defer closeStore()
	log.WithField("backend", cfg.StoreBackend).Info("Connected to document store")

	s := newServices(store, users, openOTPStore(ctx, cfg), cfg)
	if err := ensureAdmin(ctx, s, cfg); err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}

	runner := &dashboard.Runner{Aggregator: s.aggregator, Interval: cfg.DashboardRefreshInterval}
	go runner.Run(ctx)

	monitor := booking.NewOffRouteMonitor(s.bookings, s.aggregator.Hub())
	go monitor.Run(ctx, cfg.OffRouteReloadInterval)

	if cfg.MQTTBroker != "" {
		sub := telemetry.NewSubscriber(cfg.MQTTPositionTopic, monitor)
		if err := sub.Start(cfg.MQTTBroker, cfg.MQTTClientID); err != nil {
			log.WithError(err).Warn("Live positions disabled")
		} else {
			defer sub.Close()
		}
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(s, cfg),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.WithField("port", cfg.Port).Info("HTTP server listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	cfg := config.Load()
	cfg.ConfigureLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Fatal("Server stopped")
	}
}
