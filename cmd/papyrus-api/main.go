package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/MarcoPoloResearchLab/papyrus/internal/accounts"
	"github.com/MarcoPoloResearchLab/papyrus/internal/auth"
	"github.com/MarcoPoloResearchLab/papyrus/internal/config"
	"github.com/MarcoPoloResearchLab/papyrus/internal/database"
	"github.com/MarcoPoloResearchLab/papyrus/internal/logging"
	"github.com/MarcoPoloResearchLab/papyrus/internal/notes"
	"github.com/MarcoPoloResearchLab/papyrus/internal/server"
)

var (
	cfgFile string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "papyrus-api",
		Short: "Papyrus notes backend service",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
	}

	setupFlags(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "SQLite database path")
	cmd.PersistentFlags().Int("guest-note-limit", defaults.GetInt("guest.note_limit"), "Maximum notes per guest identity")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("signing-secret", "", "Credential signing secret (overrides env)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "guest.note_limit", "guest-note-limit")
	bindFlag(cmd, "log.level", "log-level")
	bindFlag(cmd, "auth.signing_secret", "signing-secret")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}

func runServer(ctx context.Context) error {
	appConfig, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	tokenIssuer := auth.NewTokenIssuer(auth.TokenIssuerConfig{
		SigningSecret:   []byte(appConfig.SigningSecret),
		Issuer:          "papyrus-auth",
		Audience:        "papyrus-api",
		AccountTokenTTL: appConfig.AccountTokenTTL,
		GuestTokenTTL:   appConfig.GuestTokenTTL,
	})
	hasher := auth.NewPasswordHasher(appConfig.BcryptCost)

	accountsService, err := accounts.NewService(accounts.ServiceConfig{
		Database:   db,
		Clock:      time.Now,
		IDProvider: accounts.NewUUIDProvider(),
		Hasher:     hasher,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	notesService, err := notes.NewService(notes.ServiceConfig{
		Database:       db,
		Clock:          time.Now,
		NoteIDs:        notes.NewUUIDProvider(),
		ShareIDs:       notes.NewShareIDProvider(),
		Hasher:         hasher,
		GuestNoteLimit: appConfig.GuestNoteLimit,
		Logger:         logger,
	})
	if err != nil {
		return err
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Accounts:    accountsService,
		Notes:       notesService,
		Credentials: tokenIssuer,
		Health:      database.NewHealth(db),
		Logger:      logger,
	})
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:    appConfig.HTTPAddress,
		Handler: handler,
	}

	signalCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.String("address", appConfig.HTTPAddress))
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-signalCtx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
