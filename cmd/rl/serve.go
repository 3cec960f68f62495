package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"recruitline/internal/app"
	"recruitline/internal/server"
)

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		Long: `Serves the API. With server.jwt_secret (or RECRUITLINE_JWT_SECRET) set every
request needs a bearer token from 'rl token'; without it the actor comes from
the X-Actor-Id header.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return withApp(ctx, func(ctx context.Context, a *app.App) error {
				if addr == "" {
					addr = a.Config.Server.Addr
				}
				if basePath == "" {
					basePath = a.Config.Server.BasePath
				}
				// Requests confirm through their own confirm field.
				e := a.Engine
				e.Confirm = nil
				handler, err := server.New(server.Config{
					Engine:   e.WithBatches(),
					BasePath: basePath,
					Auth:     server.AuthConfig{JWTSecret: a.Config.Server.JWTSecret},
					Log:      a.Log,
				})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
				go func() {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				a.Log.WithField("driver", a.Config.Database.Driver).Infof("serving recruitline API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)", addr, basePath, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (config server.addr when empty)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (config server.base_path when empty)")
	return cmd
}

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for --actor-id",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Server.JWTSecret == "" {
				return fmt.Errorf("server.jwt_secret or RECRUITLINE_JWT_SECRET is required")
			}
			token, err := server.IssueToken(cfg.Server.JWTSecret, viper.GetString("actor-id"))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}
