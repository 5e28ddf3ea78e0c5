package transportgrpc

import (
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/arklim/autodoc-access/internal/core/domain"
	grpcinterceptors "github.com/arklim/autodoc-access/internal/transport/grpc/interceptors"
)

// ServiceName is the health service name reported for the access API.
const ServiceName = "autodoc.access"

// DefaultPublicMethods never require an API key.
var DefaultPublicMethods = []string{
	healthpb.Health_Check_FullMethodName,
	healthpb.Health_Watch_FullMethodName,
}

// ServerDependencies encapsulates services required by the gRPC server layer.
type ServerDependencies struct {
	Authorizer     grpcinterceptors.APIKeyAuthorizer
	Metrics        *grpcinterceptors.GRPCMetrics
	TracerProvider trace.TracerProvider
	Logger         *zap.Logger
	PublicMethods  []string // methods that don't require authentication
}

// Server bundles the gRPC server with its health service.
type Server struct {
	*grpc.Server
	Health *health.Server
}

// NewServer wires the health and reflection services with API key authentication enforced through interceptors.
func NewServer(deps ServerDependencies) (*Server, error) {
	if deps.Authorizer == nil {
		return nil, fmt.Errorf("api key authorizer is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	public := append(append([]string{}, DefaultPublicMethods...), deps.PublicMethods...)
	authInterceptor := grpcinterceptors.NewAuthInterceptor(deps.Authorizer, grpcinterceptors.AuthOptions{
		Logger:       logger,
		AllowMethods: public,
		Required:     domain.RequirePermission(domain.ResourceOrganization, domain.ActionRead),
	})

	server := grpc.NewServer(
		grpcinterceptors.TracingServerOption(grpcinterceptors.TracingOptions{
			TracerProvider:  deps.TracerProvider,
			UntracedMethods: DefaultPublicMethods,
		}),
		grpc.ChainUnaryInterceptor(
			deps.Metrics.UnaryServerInterceptor(),
			authInterceptor.UnaryServerInterceptor(),
		),
		grpc.ChainStreamInterceptor(
			deps.Metrics.StreamServerInterceptor(),
			authInterceptor.StreamServerInterceptor(),
		),
	)

	healthServer := health.NewServer()
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)

	// Register reflection service for tools like Postman, grpcurl, etc.
	reflection.Register(server)

	return &Server{Server: server, Health: healthServer}, nil
}

// Shutdown marks every service as not serving and drains in-flight calls.
func (s *Server) Shutdown() {
	s.Health.Shutdown()
	s.GracefulStop()
}
