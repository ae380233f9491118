package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Gartalgart/cri-novadis/internal/config"
	domainErrors "github.com/Gartalgart/cri-novadis/internal/domain/errors"
	"github.com/Gartalgart/cri-novadis/internal/infrastructure/database"
	"github.com/Gartalgart/cri-novadis/internal/infrastructure/database/postgres"
	"github.com/Gartalgart/cri-novadis/internal/infrastructure/localstore"
	"github.com/Gartalgart/cri-novadis/internal/service"
	"github.com/Gartalgart/cri-novadis/internal/utils/clock"
	"github.com/Gartalgart/cri-novadis/internal/utils/logger"
	"github.com/Gartalgart/cri-novadis/migrations"
)

func main() {
	// Local development convenience; absent .env files are fine.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log, err := logger.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer log.Sync()

	ctx := context.Background()

	if cfg.Database.AutoMigrate {
		if err := migrations.NewManager(cfg.Database, log).MigrateUp(); err != nil {
			log.Fatal("Migration failed", zap.Error(err))
		}
	}

	pool, err := postgres.NewDBPool(ctx, cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to authorization source", zap.Error(err))
	}
	defer pool.Close()

	store, err := localstore.NewSQLiteStore(cfg.LocalStore.Path)
	if err != nil {
		log.Fatal("Failed to open local store", zap.Error(err))
	}
	defer store.Close()

	if cfg.Metrics.Enabled {
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			log.Info("Metrics listener started", zap.String("addr", addr))
			if err := http.ListenAndServe(addr, promhttp.Handler()); err != nil {
				log.Error("Metrics listener stopped", zap.Error(err))
			}
		}()
	}

	userRepo := database.NewPgxAuthorizedUserRepository(pool)
	attemptRepo := database.NewPgxLoginAttemptRepository(pool)

	sessions := service.NewSessionService(store, cfg.Auth.SessionSecret, cfg.Auth.SessionTTL,
		logger.WithComponent(log, "sessions"))

	auth := service.NewAuthService(service.AuthServiceConfig{
		AuthSource:    userRepo,
		Attempts:      attemptRepo,
		Sessions:      sessions,
		Store:         store,
		Policy:        service.NewLockoutPolicy(cfg.Auth.MaxAttempts, cfg.Auth.BlockDuration),
		Challenges:    service.NewChallengeService(cfg.Auth.CodeTTL),
		Clock:         clock.Real{},
		Logger:        logger.WithComponent(log, "auth"),
		RemoteTimeout: cfg.Auth.RemoteTimeout,
		Platform:      cfg.App.Platform,
		OnCodeIssued: func(email, code string) {
			// Stand-in for the mail delivery collaborator.
			fmt.Printf("Verification code for %s: %s\n", email, code)
		},
		OnAuthenticated: func(identity string) {
			fmt.Printf("Signed in as %s\n", identity)
		},
	})

	if identity, err := auth.CheckExistingSession(ctx); err != nil {
		log.Error("Session check failed", zap.Error(err))
	} else if identity != "" {
		runAuthenticated(ctx, auth, identity)
		return
	}

	runSignIn(ctx, auth)
}

// runSignIn drives the two-step flow from stdin, standing in for the
// presentation layer. Input is read serially, so controller operations are
// never invoked concurrently.
func runSignIn(ctx context.Context, auth *service.AuthService) {
	reader := bufio.NewReader(os.Stdin)

	for {
		email := prompt(reader, "Email: ")
		if err := auth.SubmitEmail(ctx, email); err != nil {
			fmt.Println(signInMessage(err))
			continue
		}

		for {
			code := prompt(reader, "Code (or 'back' to change email): ")
			if strings.EqualFold(code, "back") {
				auth.ChangeEmail()
				break
			}
			identity, err := auth.SubmitCode(ctx, code)
			if err != nil {
				fmt.Println(signInMessage(err))
				if errors.Is(err, domainErrors.ErrCodeExpired) || errors.Is(err, domainErrors.ErrLocked) {
					break
				}
				continue
			}
			runAuthenticated(ctx, auth, identity)
			return
		}
	}
}

func runAuthenticated(ctx context.Context, auth *service.AuthService, identity string) {
	reader := bufio.NewReader(os.Stdin)
	for {
		input := prompt(reader, fmt.Sprintf("[%s] 'logout' or 'quit': ", identity))
		switch strings.ToLower(input) {
		case "logout":
			if err := auth.Logout(ctx); err != nil {
				fmt.Printf("Logout failed: %v\n", err)
				continue
			}
			runSignIn(ctx, auth)
			return
		case "quit":
			return
		}
	}
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Print(label)
	line, err := reader.ReadString('\n')
	if err != nil {
		os.Exit(0)
	}
	return strings.TrimSpace(line)
}

// signInMessage maps flow errors to the messages shown to the user. Unknown
// and unreachable accounts intentionally share one generic message.
func signInMessage(err error) string {
	var locked *domainErrors.LockedError
	var invalidCode *domainErrors.InvalidCodeError
	switch {
	case errors.As(err, &locked):
		return fmt.Sprintf("Too many attempts. Try again in %d minutes.", locked.MinutesLeft)
	case errors.As(err, &invalidCode):
		return fmt.Sprintf("Invalid code. %d attempts remaining.", invalidCode.RemainingAttempts)
	case errors.Is(err, domainErrors.ErrCodeExpired):
		return "The code has expired. Please start over."
	case errors.Is(err, domainErrors.ErrDisabled):
		return "This account has been disabled. Contact your administrator."
	case errors.Is(err, domainErrors.ErrUnauthorized):
		return "This email is not authorized or does not exist."
	case errors.Is(err, domainErrors.ErrInvalidInput):
		return "Please enter a value."
	default:
		return fmt.Sprintf("Sign-in error: %v", err)
	}
}
