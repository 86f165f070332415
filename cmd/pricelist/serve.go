package main

import (
	"net"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ralborta/pdf-microservice/internal/repository"
	"github.com/ralborta/pdf-microservice/internal/server"
	"github.com/ralborta/pdf-microservice/internal/tool"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var httpAddr, grpcAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the extraction API over HTTP and gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			logger := root.logger
			if httpAddr == "" {
				httpAddr = root.cfg.Server.HTTPAddr
			}
			if grpcAddr == "" {
				grpcAddr = root.cfg.Server.GRPCAddr
			}

			svc, db, cleanup, err := root.newService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			if db != nil {
				if err := repository.HealthCheck(ctx, db, 5*time.Second, logger); err != nil {
					return err
				}
			}

			lis, err := net.Listen("tcp", grpcAddr)
			if err != nil {
				logger.Error("failed to listen on address", "addr", grpcAddr, "error", err)
				return err
			}
			grpcServer := server.NewGRPCServer(svc, logger)
			httpServer := server.NewHTTPServer(svc, db, logger)

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error { return httpServer.Run(gctx, httpAddr) })
			g.Go(func() error { return grpcServer.Serve(lis) })
			g.Go(func() error {
				<-gctx.Done()
				grpcServer.GracefulStop()
				return nil
			})

			logger.Info("pricelist serving", "http_addr", httpAddr, "grpc_addr", grpcAddr, "version", version)
			if err := g.Wait(); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP listen address (default from config)")
	cmd.Flags().StringVar(&grpcAddr, "grpc-addr", "", "gRPC listen address (default from config)")
	return cmd
}

func newMCPCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the extraction tool over MCP on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			svc, _, cleanup, err := root.newService(ctx)
			if err != nil {
				return err
			}
			defer cleanup()

			root.logger.Info("mcp serving on stdio", "version", version)
			if err := tool.NewServer(svc, version).Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}
}
