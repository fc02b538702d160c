package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"busclient/internal/backendapi"
	"busclient/internal/broadcast"
	intconfig "busclient/internal/config"
	"busclient/internal/devauthority"
	router "busclient/internal/http"
	"busclient/internal/repositories"
	"busclient/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
)

func main() {
	envFile := pflag.String("env-file", ".env", "optional KEY=VALUE file loaded before the environment is read")
	addr := pflag.String("addr", "", "listen address (overrides APP_ADDR)")
	apiBase := pflag.String("api-base", "", "ticketing backend base URL (overrides API_BASE_URL)")
	driver := pflag.String("broadcast", "", "broadcast driver: redis or memory (overrides BROADCAST_DRIVER)")
	fareFile := pflag.String("fare-file", "", "YAML fare table (overrides FARE_TABLE_FILE)")
	devAddr := pflag.String("dev-authority", "", "also serve an in-memory session authority on this address")
	pflag.Parse()

	intconfig.LoadDotEnv(*envFile)
	env := intconfig.LoadEnv()
	override(&env.AppAddr, *addr)
	override(&env.APIBaseURL, strings.TrimRight(*apiBase, "/"))
	override(&env.BroadcastDriver, *driver)
	override(&env.FareTableFile, *fareFile)
	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

	fares := loadFares(env)
	defer intconfig.CloseDB()

	transport, err := broadcast.Open(env.BroadcastDriver, broadcast.RedisOptions{
		Addr:     env.RedisAddr,
		Password: env.RedisPassword,
		DB:       env.RedisDB,
		Prefix:   env.BroadcastPrefix,
	})
	if err != nil {
		log.Fatalf("Gagal membuka broadcast: %v", err)
	}
	defer transport.Close()

	var servers []*http.Server
	if *devAddr != "" {
		servers = append(servers, devAuthorityServer(*devAddr, env.JWTSecret, transport.Publisher))
		if *apiBase == "" {
			env.APIBaseURL = "http://" + localHost(*devAddr)
		}
	}

	core := services.NewCore(services.CoreOptions{
		Backend:         backendapi.New(env.APIBaseURL),
		Dialer:          transport.Dialer,
		Fares:           fares,
		ProbeTimeout:    env.SessionProbeTimeout,
		SubmitTimeout:   env.BookingSubmitTimeout,
		RefreshInterval: env.SessionRefresh,
		FeedCapacity:    env.NotificationCapacity,
		FeedTTL:         env.NotificationTTL,
	})
	defer core.Close()

	// Router (Gin engine)
	r := router.NewRouter(env, core)
	servers = append(servers, &http.Server{
		Addr:              env.AppAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		// no WriteTimeout: the notification stream stays open
		IdleTimeout: 60 * time.Second,
	})

	for _, srv := range servers {
		go func(srv *http.Server) {
			log.Printf("Server berjalan di http://localhost%s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("Gagal menjalankan server: %v", err)
			}
		}(srv)
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), env.SessionProbeTimeout*2)
		defer cancel()
		core.Start(ctx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("Mematikan server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	core.Close()
	for _, srv := range servers {
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Shutdown server gagal: %v", err)
		}
	}

	log.Println("Server berhenti dengan aman.")
}

func override(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}

func localHost(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

// loadFares prefers the YAML file, then the fare database, then the built-in catalog.
func loadFares(env intconfig.Env) *services.FareTable {
	if env.FareTableFile != "" {
		t, err := services.LoadFareTableFile(env.FareTableFile)
		if err == nil {
			log.Printf("Fare table dimuat dari %s (%d rute)", env.FareTableFile, t.Len())
			return t
		}
		log.Printf("warning: fare table %s: %v", env.FareTableFile, err)
	}
	if env.FareDBDSN != "" {
		db, err := intconfig.ConnectDB(env.FareDBDriver, env.FareDBDSN)
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			repo := repositories.FareRepository{DB: db, Dialect: intconfig.DriverName(env.FareDBDriver)}
			t, err := services.LoadFareTable(ctx, repo)
			if err == nil {
				log.Printf("Fare table dimuat dari database (%d rute)", t.Len())
				return t
			}
			log.Printf("warning: fare table dari database: %v", err)
		} else {
			log.Printf("warning: %v", err)
		}
	}
	return services.DefaultFareTable()
}

func devAuthorityServer(addr, secret string, pub broadcast.Publisher) *http.Server {
	store := devauthority.NewStore()
	if err := store.SeedDefaults(); err != nil {
		log.Fatalf("Gagal seed akun: %v", err)
	}
	srv := &devauthority.Server{Store: store, Secret: []byte(secret), Publisher: pub}
	return &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
