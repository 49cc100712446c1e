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

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	redisStore "github.com/gin-contrib/sessions/redis"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/yukikurage/taskflow-api/internal/auth"
	"github.com/yukikurage/taskflow-api/internal/config"
	"github.com/yukikurage/taskflow-api/internal/database"
	"github.com/yukikurage/taskflow-api/internal/handlers"
	"github.com/yukikurage/taskflow-api/internal/realtime"
	"github.com/yukikurage/taskflow-api/internal/services"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API and websocket gateway",
		Long: `Start the HTTP API and the project websocket gateway.

Background jobs are processed by "taskflow worker". Pass --with-worker to
also run the worker pool in this process; it is always on when
QUEUE_BACKEND=memory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.close()

			if err := database.Migrate(a.db, log); err != nil {
				return err
			}

			return a.serve(ctx, withWorker)
		},
	}

	cmd.Flags().BoolVar(&withWorker, "with-worker", false, "run the background worker pool in this process")

	return cmd
}

func (a *app) serve(ctx context.Context, withWorker bool) error {
	gin.SetMode(a.cfg.GinMode)

	store, err := a.sessionStore()
	if err != nil {
		return err
	}

	hub := realtime.NewHub(a.log.With("component", "hub"))
	g, ctx := errgroup.WithContext(ctx)

	// With Redis, events go through pub/sub so workers in other processes
	// reach the sockets held here. Otherwise the hub is the bus.
	var publisher realtime.Publisher = hub
	if a.pool != nil {
		broker := realtime.NewRedisBroker(a.pool, a.log.With("component", "broker"))
		publisher = broker
		g.Go(func() error {
			return broker.Run(ctx, hub, nil)
		})
	}

	if a.cfg.QueueBackend == "memory" && !withWorker {
		a.log.Info("memory queue selected, running worker in-process")
		withWorker = true
	}
	if withWorker {
		w := a.newWorker(publisher)
		g.Go(func() error {
			return a.runWorker(ctx, w)
		})
	}

	tokens := auth.NewTokenService(a.cfg.TokenSecret, a.cfg.TokenTTL)
	users := services.NewAuthService(a.repos.Users)
	tasks := services.NewTaskService(a.deps)
	tags := services.NewTagService(a.deps)
	gate := realtime.NewGate(hub, tokens, users, a.deps.Members, a.log.With("component", "gate"))

	router := handlers.NewRouter(store, tokens, handlers.Handlers{
		Auth:     handlers.NewAuthHandler(users, tokens),
		Projects: handlers.NewProjectHandler(services.NewProjectService(a.deps)),
		Tasks:    handlers.NewTaskHandler(tasks, tags),
		Comments: handlers.NewCommentHandler(tasks, services.NewCommentService(a.deps)),
		Tags:     handlers.NewTagHandler(tags),
		Socket:   gate.Handle,
	}, a.log)

	srv := &http.Server{
		Addr:              a.cfg.HTTPAddress,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		a.log.Info("server starting", "address", a.cfg.HTTPAddress)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		a.log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		// Hijacked websocket connections are not tracked by Shutdown.
		hub.CloseAll()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// sessionStore keeps sessions in Redis when Redis backs the cache, and in
// signed cookies otherwise.
func (a *app) sessionStore() (sessions.Store, error) {
	var store sessions.Store
	if a.cfg.CacheBackend == "redis" {
		s, err := redisStore.NewStore(10, "tcp", a.cfg.RedisAddr(), "", "", []byte(a.cfg.SessionSecret))
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis session store: %w", err)
		}
		store = s
	} else {
		store = cookie.NewStore([]byte(a.cfg.SessionSecret))
	}

	store.Options(sessionOptions(a.cfg))
	return store, nil
}

func sessionOptions(cfg *config.Config) sessions.Options {
	return sessions.Options{
		Path:     "/",
		MaxAge:   86400 * 7,
		HttpOnly: true,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}
}
