package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/config"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/logging"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/metrics"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/session"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/watch"
	"github.com/GiveMeMoreData/useit-warsaw-spots/internal/web"
)

func serveCommand(v *viper.Viper, load func() (*app, error)) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the map web app",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := load()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), a)
		},
	}
	cmd.Flags().String("port", "", "listen port (overrides web.port and PORT)")
	_ = v.BindPFlag("web.port", cmd.Flags().Lookup("port"))
	return cmd
}

func serve(ctx context.Context, a *app) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logging.Module(a.logger, "serve")
	m := metrics.New()
	sessionLog := logging.Module(a.logger, "session")
	store := session.NewStore(a.cfg.Web.SessionTTL, func() *session.Coordinator {
		return session.NewCoordinator(a.src, a.settings, m, sessionLog)
	})
	m.RegisterSessions(store.Len)

	if a.cfg.Source.Kind == config.SourceXLSX && a.cfg.Source.Watch {
		go func() {
			err := watch.File(ctx, a.cfg.Source.XLSXPath, 500*time.Millisecond, logging.Module(a.logger, "watch"), func() {
				n := store.MarkAllStale()
				m.SourceChanged()
				log.Info("source file changed, sessions marked for reload", "sessions", n)
			})
			if err != nil {
				log.Warn("source file watcher stopped", "error", err)
			}
		}()
	}

	secret := a.cfg.Web.SessionSecret
	if secret == "" {
		secret = uuid.NewString()
		log.Warn("web.session_secret not set, sessions will not survive a restart")
	}

	if a.cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := web.NewServer(web.Config{
		PageTitle:     a.cfg.Web.PageTitle,
		Password:      a.cfg.Web.Password,
		SessionSecret: secret,
		SessionTTL:    a.cfg.Web.SessionTTL,
		MapHeight:     a.cfg.Map.Height,
	}, store, m.Handler(), logging.Module(a.logger, "web"))

	httpSrv := &http.Server{
		Addr:              a.cfg.Web.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", a.cfg.Web.Port, "source", a.src.Name())
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
