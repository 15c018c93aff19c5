package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	srv "github.com/mohammad-safakhou/deepresearch/internal/server"
	"github.com/mohammad-safakhou/deepresearch/internal/store"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var serveAddr string
	var migDir string
	var autoMigrate bool
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, *cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()

			opts := srv.Options{JWTSecret: []byte(a.cfg.Server.JWTSecret), Logger: a.logger}
			if pg := a.cfg.Storage.Postgres; pg.Enabled() {
				if autoMigrate {
					if err := srv.Migrate(migDir, pg.DSN(), "up", 0); err != nil {
						a.logger.Warn("migrations failed", zap.Error(err))
					}
				}
				st, err := store.NewWithDSN(ctx, pg.DSN())
				if err != nil {
					return err
				}
				defer st.Close()
				opts.Archive = st
			}

			if serveAddr == "" {
				serveAddr = a.cfg.Server.Address
			}
			a.logger.Info("http api listening", zap.String("addr", serveAddr), zap.Bool("archive", opts.Archive != nil), zap.Bool("auth", len(opts.JWTSecret) > 0))
			return srv.Serve(ctx, srv.New(a.pipeline(nil), opts), serveAddr)
		},
	}
	serve.Flags().StringVar(&serveAddr, "addr", "", "listen address (default server.address)")
	serve.Flags().StringVar(&migDir, "migrations", "file://migrations", "migrations source applied at startup")
	serve.Flags().BoolVar(&autoMigrate, "migrate", true, "apply migrations before serving")
	return serve
}
