package rpcServer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/propshare-labs/distributor/internal/metrics"
	"github.com/propshare-labs/distributor/internal/metrics/metricsTypes"
	"github.com/propshare-labs/distributor/pkg/claims"
	"github.com/propshare-labs/distributor/pkg/distribution"
	"github.com/propshare-labs/distributor/pkg/eventBus"
	"github.com/propshare-labs/distributor/pkg/proofs"
	"github.com/propshare-labs/distributor/pkg/transfer"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type RpcServerConfig struct {
	HttpPort int
}

type RpcServer struct {
	Logger       *zap.Logger
	config       *RpcServerConfig
	registry     *distribution.Registry
	claimsEngine *claims.Engine
	proofStore   *proofs.ProofStore
	escrowLedger *transfer.EscrowLedger
	eventBus     *eventBus.EventBus
	metricsSink  *metrics.MetricsSink
}

func NewRpcServer(
	cfg *RpcServerConfig,
	registry *distribution.Registry,
	claimsEngine *claims.Engine,
	proofStore *proofs.ProofStore,
	escrowLedger *transfer.EscrowLedger,
	eb *eventBus.EventBus,
	sink *metrics.MetricsSink,
	l *zap.Logger,
) *RpcServer {
	return &RpcServer{
		Logger:       l,
		config:       cfg,
		registry:     registry,
		claimsEngine: claimsEngine,
		proofStore:   proofStore,
		escrowLedger: escrowLedger,
		eventBus:     eb,
		metricsSink:  sink,
	}
}

func (s *RpcServer) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", s.handleHealth)

	mux.HandleFunc("POST /v1/distributions", s.handleCreateDistribution)
	mux.HandleFunc("GET /v1/distributions/{id}", s.handleGetDistribution)
	mux.HandleFunc("POST /v1/distributions/{id}/activate", s.handleActivateDistribution)
	mux.HandleFunc("POST /v1/distributions/{id}/close", s.handleCloseDistribution)
	mux.HandleFunc("POST /v1/distributions/{id}/cancel", s.handleCancelDistribution)

	mux.HandleFunc("POST /v1/distributions/{id}/claims", s.handleProcessClaim)
	mux.HandleFunc("GET /v1/distributions/{id}/claims/{holder}", s.handleGetClaimStatus)
	mux.HandleFunc("GET /v1/distributions/{id}/proofs/{holder}", s.handleGetProof)

	return cors.Default().Handler(s.withRequestMetrics(mux))
}

func (s *RpcServer) withRequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if s.metricsSink != nil {
			_ = s.metricsSink.Incr(metricsTypes.Metric_Incr_HttpRequest, nil, 1)
			_ = s.metricsSink.Timing(metricsTypes.Metric_Timing_HttpDuration, time.Since(start), nil)
		}
	})
}

func (s *RpcServer) Start(ctx context.Context, shutdownChan chan bool) error {
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.HttpPort),
		Handler: s.routes(),
	}

	go func() {
		for range shutdownChan {
			s.Logger.Sugar().Info("Shutting down rpc server")
			if err := httpServer.Shutdown(ctx); err != nil {
				s.Logger.Sugar().Errorw("Failed to shutdown rpc server", zap.Error(err))
			}
		}
	}()
	go func() {
		s.Logger.Sugar().Infow("Starting http rpc server", zap.Int("port", s.config.HttpPort))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.Logger.Sugar().Fatalw("Failed to start http rpc server", zap.Error(err))
		}
	}()
	return nil
}
