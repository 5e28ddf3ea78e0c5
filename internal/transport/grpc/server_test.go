package transportgrpc

import (
	"context"
	"net"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/arklim/autodoc-access/internal/core/domain"
	grpcinterceptors "github.com/arklim/autodoc-access/internal/transport/grpc/interceptors"
	"github.com/arklim/autodoc-access/internal/usecase"
)

type keyAuthorizer struct {
	valid string
}

func (k keyAuthorizer) Authorize(_ context.Context, operation, secret string, _ domain.Permissions) (usecase.AccessScope, error) {
	if secret != k.valid {
		return usecase.AccessScope{}, &usecase.OperationError{Op: operation, Kind: usecase.ErrUnauthorized, Message: "Invalid API key"}
	}
	return usecase.AccessScope{OrganizationID: "org-1"}, nil
}

func startTestServer(t *testing.T) *grpc.ClientConn {
	t.Helper()

	metrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{Registerer: prometheus.NewRegistry()})
	if err != nil {
		t.Fatalf("NewGRPCMetrics: %v", err)
	}

	srv, err := NewServer(ServerDependencies{
		Authorizer: keyAuthorizer{valid: "adg_valid"},
		Metrics:    metrics,
		Logger:     zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}

	listener := bufconn.Listen(1 << 20)
	go func() { _ = srv.Serve(listener) }()
	t.Cleanup(srv.Shutdown)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHealthCheckIsPublic(t *testing.T) {
	conn := startTestServer(t)

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: ServiceName})
	if err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %v", resp.GetStatus())
	}
}

func TestReflectionRequiresAPIKey(t *testing.T) {
	conn := startTestServer(t)

	invoke := func(ctx context.Context) error {
		stream, err := conn.NewStream(ctx, &grpc.StreamDesc{ServerStreams: true, ClientStreams: true},
			"/grpc.reflection.v1.ServerReflection/ServerReflectionInfo")
		if err != nil {
			return err
		}
		if err := stream.CloseSend(); err != nil {
			return err
		}
		var out healthpb.HealthCheckResponse
		return stream.RecvMsg(&out)
	}

	if err := invoke(context.Background()); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated without key, got %v", err)
	}

	ctx := metadata.AppendToOutgoingContext(context.Background(), "x-api-key", "adg_wrong")
	if err := invoke(ctx); status.Code(err) != codes.Unauthenticated {
		t.Fatalf("expected unauthenticated with wrong key, got %v", err)
	}
}

func TestNewServerRequiresAuthorizer(t *testing.T) {
	if _, err := NewServer(ServerDependencies{}); err == nil {
		t.Fatal("expected error without authorizer")
	}
}
