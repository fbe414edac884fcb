package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.mongodb.org/mongo-driver/mongo"

	"storefront/config"
	"storefront/db"
	"storefront/filedrop"
	"storefront/logger"
	"storefront/middleware"
	"storefront/mq"
	"storefront/orders"
	"storefront/pay"
	"storefront/products"
	"storefront/ratelim"
	"storefront/rdx"
	"storefront/reviews"
	"storefront/routes"
	"storefront/seeder"
	"storefront/stripe"
	"storefront/users"
	"storefront/utils"
)

func main() {
	importAll := flag.Bool("import", false, "replace users, products and orders with sample data, then exit")
	importProducts := flag.Bool("import-products", false, "replace products and orders with sample data owned by the admin user, then exit")
	destroyAll := flag.Bool("destroy", false, "delete all users, products and orders, then exit")
	destroyProducts := flag.Bool("destroy-products", false, "delete all products and orders, then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	appLog := logger.NewLogger()

	ctx := context.Background()
	client, database, err := db.Connect(ctx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		log.Fatalf("❌ %v", err)
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()
	if err := db.EnsureIndexes(ctx, database); err != nil {
		log.Fatalf("❌ creating indexes: %v", err)
	}

	userStore := users.NewMongoStore(database)
	productStore := products.NewMongoStore(database)
	orderStore := orders.NewMongoStore(database)

	if *importAll || *importProducts || *destroyAll || *destroyProducts {
		s := seeder.New(userStore, productStore, orderStore, appLog)
		var err error
		switch {
		case *destroyAll:
			err = s.Destroy(ctx)
		case *destroyProducts:
			err = s.DestroyProducts(ctx)
		case *importProducts:
			err = s.ImportProducts(ctx)
		default:
			err = s.Import(ctx)
		}
		if err != nil {
			log.Fatalf("❌ seeding failed: %v", err)
		}
		return
	}

	cache := rdx.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, appLog)
	if cache.Enabled() {
		if err := cache.Ping(ctx); err != nil {
			appLog.Warn("redis unreachable; cache and locks degrade per call", "addr", cfg.RedisAddr, "err", err)
		}
	} else {
		appLog.Info("REDIS_ADDR not set; cache, checkout locks and events disabled")
	}
	defer cache.Close()

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           buildHandler(cfg, appLog, client, database, cache, stores{userStore, productStore, orderStore}),
		ReadTimeout:       7 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
	}

	go func() {
		appLog.Info("server listening", "addr", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ ListenAndServe error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	appLog.Info("shutdown signal received; shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLog.Error("graceful shutdown failed", "err", err)
		return
	}
	appLog.Info("server stopped cleanly")
}

type stores struct {
	users    *users.MongoStore
	products *products.MongoStore
	orders   *orders.MongoStore
}

// buildHandler wires stores and services into the router and wraps it:
// logging, then security headers, then CORS, then the router.
func buildHandler(cfg *config.Config, appLog *logger.Logger, client *mongo.Client, database *mongo.Database, cache *rdx.Client, st stores) http.Handler {
	errs := utils.ErrorResponder{ShowStack: !cfg.IsProduction(), Log: appLog}
	events := mq.NewEmitter(cache)
	gateway := stripe.New(cfg.StripeSecretKey)

	userStore, productStore, orderStore := st.users, st.products, st.orders

	productHandler := products.NewHandler(productStore, cache, appLog)
	reconciler := orders.NewReconciler(gateway, orderStore, events, appLog)
	checkout := orders.NewCheckout(gateway, cache, appLog)

	router := routes.New(routes.Deps{
		Auth:        middleware.NewAuthenticator(cfg.JWTSecret, userStore, errs),
		Errors:      errs,
		Limiter:     ratelim.NewRateLimiter(30, 10),
		Users:       users.NewHandler(userStore, cfg.JWTSecret, appLog),
		Products:    productHandler,
		Reviews:     reviews.NewService(productStore, productHandler, events, appLog),
		Orders:      orders.NewService(orderStore, userStore, productStore, reconciler, checkout, events, appLog),
		Idempotency: pay.NewIdempotency(pay.NewMongoStore(database), errs, appLog),
		Uploads:     filedrop.NewUploader(cfg.UploadDir, appLog),

		PayPalClientID:       cfg.PayPalClientID,
		StripePublishableKey: cfg.StripePublishableKey,
		Ping: func(ctx context.Context) error {
			return client.Ping(ctx, nil)
		},
	})

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", pay.HeaderKey},
		ExposedHeaders:   []string{"X-Pagination"},
		AllowCredentials: true,
	}).Handler(router)

	return middleware.Logging(appLog)(middleware.SecurityHeaders(corsHandler))
}
