package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/gophauth/internal/client/avatars"
	"github.com/dmitrijs2005/gophauth/internal/client/cli"
	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
	"github.com/dmitrijs2005/gophauth/internal/client/lifecycle"
	"github.com/dmitrijs2005/gophauth/internal/client/services"
	"github.com/dmitrijs2005/gophauth/internal/filex"
	"github.com/dmitrijs2005/gophauth/internal/logging"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	logger := logging.NewDefault(os.Stderr, cfg.LogLevel)

	if err := filex.EnsureParentDir(cfg.DatabaseDSN); err != nil {
		return err
	}
	db, err := client.InitDatabase(ctx, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("open local store: %w", err)
	}
	defer db.Close()

	ref, err := client.ProjectRef(cfg.BaseURL)
	if err != nil {
		return err
	}
	var secret []byte
	if cfg.StorageSecret != "" {
		secret = []byte(cfg.StorageSecret)
	}

	auth, err := client.NewAuth(client.Options{
		BaseURL:          cfg.BaseURL,
		AnonKey:          cfg.AnonKey,
		RequestTimeout:   cfg.RequestTimeout,
		AutoRefreshTick:  cfg.AutoRefreshTick,
		RefreshThreshold: cfg.RefreshThreshold,
		Logger:           logger,
	}, client.NewSessionStore(db, ref, secret))
	if err != nil {
		return err
	}

	uploader, err := avatars.NewUploader(avatars.Options{
		BaseURL: auth.BaseURL(),
		Bucket:  cfg.AvatarBucket,
		Region:  cfg.StorageRegion,
	})
	if err != nil {
		return err
	}

	appState := lifecycle.NewSignal(lifecycle.Active)
	router := cli.NewRouter(os.Stdout)

	svc := services.NewAuthService(auth, client.NewProfiles(auth), services.Options{
		Navigator:        router,
		Lifecycle:        appState,
		ResetRedirectURL: cfg.ResetRedirectURL,
		Logger:           logger,
	})
	defer svc.Close()
	unlog := services.LogTransitions(svc, logger)
	defer unlog()

	svc.Start(ctx)

	app := cli.NewApp(cli.Deps{
		Auth:      svc,
		Avatars:   services.NewAvatarService(svc, auth, uploader, auth.ProjectRef(), auth.AnonKey(), logger),
		Lifecycle: appState,
		Router:    router,
		In:        os.Stdin,
		Out:       os.Stdout,
		Logger:    logger,
	})
	app.Run(ctx)
	return nil
}
