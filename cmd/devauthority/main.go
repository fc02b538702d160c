// Command devauthority serves an in-memory session authority and booking endpoint
// that publishes booking events to the broadcast service.
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

	"busclient/internal/broadcast"
	intconfig "busclient/internal/config"
	"busclient/internal/devauthority"
	"busclient/internal/domain/models"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
)

func main() {
	envFile := pflag.String("env-file", ".env", "optional KEY=VALUE file loaded before the environment is read")
	addr := pflag.String("addr", ":8080", "listen address")
	driver := pflag.String("broadcast", "", "broadcast driver: redis or memory (overrides BROADCAST_DRIVER)")
	users := pflag.StringArray("user", nil, "extra end user as email:password (repeatable)")
	noSeed := pflag.Bool("no-seed", false, "do not create the demo accounts")
	pflag.Parse()

	intconfig.LoadDotEnv(*envFile)
	env := intconfig.LoadEnv()
	if *driver != "" {
		env.BroadcastDriver = *driver
	}
	if env.GinMode != "" {
		gin.SetMode(env.GinMode)
	}

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

	store := devauthority.NewStore()
	if !*noSeed {
		if err := store.SeedDefaults(); err != nil {
			log.Fatalf("Gagal seed akun: %v", err)
		}
	}
	for _, entry := range *users {
		email, password, ok := strings.Cut(entry, ":")
		if !ok {
			log.Fatalf("--user %q harus berformat email:password", entry)
		}
		if _, err := store.AddUser(models.UserAccount{FullName: email, Email: email}, password); err != nil {
			log.Fatalf("Gagal menambah user %s: %v", email, err)
		}
	}

	authority := &devauthority.Server{Store: store, Secret: []byte(env.JWTSecret), Publisher: transport.Publisher}
	srv := &http.Server{
		Addr:              *addr,
		Handler:           authority.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       20 * time.Second,
		WriteTimeout:      20 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("Session authority berjalan di %s (broadcast=%s)", *addr, env.BroadcastDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Gagal menjalankan server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Shutdown server gagal: %v", err)
	}
	log.Println("Server berhenti dengan aman.")
}
