// README: Entry point; loads config, wires services, starts the HTTP server.
package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bistro/internal/config"
	httptransport "bistro/internal/http"
	"bistro/internal/infra"
	"bistro/internal/logger"
	"bistro/internal/maps"
	"bistro/internal/modules/cart"
	"bistro/internal/modules/driver"
	"bistro/internal/modules/menu"
	"bistro/internal/modules/notify"
	"bistro/internal/modules/order"
	"bistro/internal/modules/pricing"
	"bistro/internal/payments"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLog := logger.New("bistro-api")

	if cfg.Firebase.ProjectID == "" {
		log.Fatal("BISTRO_FIREBASE_PROJECT_ID is required")
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Fatalf("firebase init: %v", err)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)
	defer redisClient.Close()

	broker := notify.NewBroker(redisClient, appLog)

	menuStore := menu.NewStore(dbPool, cfg.Pricing.Currency)

	pricingSvc := pricing.NewService(pricing.Policy{
		Currency:    cfg.Pricing.Currency,
		TaxBps:      cfg.Pricing.TaxBps,
		DeliveryFee: cfg.Pricing.DeliveryFee,
	})

	cartStore := cart.NewStore(dbPool, cfg.Pricing.Currency)
	cartSvc := cart.NewService(cartStore, menuStore, pricingSvc)

	driverStore := driver.NewStore(dbPool, redisClient, cfg.Pricing.Currency)
	driverSvc := driver.NewService(driverStore, broker, cfg.Driver.MinPassword, cfg.Driver.Staleness)

	gateway := payments.NewClient(cfg.Payment.BaseURL, cfg.Payment.APIKey)

	var eta order.ETAEstimator
	if cfg.Maps.APIKey != "" {
		routeSvc, err := maps.NewRouteService(cfg.Maps.APIKey)
		if err != nil {
			log.Fatalf("maps init: %v", err)
		}
		eta = routeSvc
	}

	orderStore := order.NewStore(dbPool, cfg.Pricing.Currency)
	orderSvc := order.NewService(order.ServiceDeps{
		Store:   orderStore,
		Pricing: pricingSvc,
		Carts:   cartSvc,
		Catalog: menuStore,
		Drivers: driverSvc,
		Gateway: gateway,
		Broker:  broker,
		ETA:     eta,
		Log:     appLog,
	})

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Menu:     menuStore,
		Cart:     cartSvc,
		Order:    orderSvc,
		Orders:   orderStore,
		Driver:   driverSvc,
		Broker:   broker,
		Verifier: verifier,
		Log:      appLog,
	})

	server := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: handler,
		// Request contexts derive from the signal context so open SSE
		// streams unwind on shutdown instead of hanging.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	appLog.Info("server_start", "listening on "+cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
