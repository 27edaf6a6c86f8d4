package main

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/cfdi-tracker/internal/export"
	"github.com/joseph-ayodele/cfdi-tracker/internal/metrics"
	"github.com/joseph-ayodele/cfdi-tracker/internal/repository"
	"github.com/joseph-ayodele/cfdi-tracker/internal/server"
)

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the gRPC health service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			repo, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer a.closeStore(repo)
			if err := repository.HealthCheck(ctx, repo, a.cfg.Database.DialTimeout, a.logger); err != nil {
				return err
			}

			m := metrics.New()
			agg, err := a.aggregator(m)
			if err != nil {
				return err
			}

			gin.SetMode(gin.ReleaseMode)
			svc := server.NewService(repo, agg, export.NewService(repo, a.logger), m, a.logger)
			httpSrv := &http.Server{
				Addr:    a.cfg.Server.HTTPAddr,
				Handler: svc.Router(),
			}

			grpcSrv, _ := server.NewGRPCServer()
			lis, err := net.Listen("tcp", a.cfg.Server.GRPCAddr)
			if err != nil {
				return err
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				a.logger.Info("http listening", "addr", a.cfg.Server.HTTPAddr)
				if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				a.logger.Info("grpc health listening", "addr", a.cfg.Server.GRPCAddr)
				return grpcSrv.Serve(lis)
			})
			g.Go(func() error {
				<-gctx.Done()
				a.logger.Info("shutting down")
				sctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
				defer cancel()
				grpcSrv.GracefulStop()
				return httpSrv.Shutdown(sctx)
			})
			return g.Wait()
		},
	}
}
