package grpchealth

import (
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"
)

func startBufconn(t *testing.T) (*Server, healthpb.HealthClient) {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Shutdown)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufconn: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return srv, healthpb.NewHealthClient(conn)
}

func check(t *testing.T, c healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q): %v", service, err)
	}
	return resp.GetStatus()
}

func TestHealth_StartsNotServing(t *testing.T) {
	_, client := startBufconn(t)

	if got := check(t, client, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("expected NOT_SERVING, got %v", got)
	}
}

func TestHealth_SetServing(t *testing.T) {
	srv, client := startBufconn(t)

	srv.SetServing("", true)
	srv.SetServing(ServiceGate, true)

	if got := check(t, client, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("overall: expected SERVING, got %v", got)
	}
	if got := check(t, client, ServiceGate); got != healthpb.HealthCheckResponse_SERVING {
		t.Errorf("gate: expected SERVING, got %v", got)
	}
	if got := check(t, client, ServiceRetention); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("retention: expected NOT_SERVING, got %v", got)
	}
}

func TestHealth_ShutdownFlipsToNotServing(t *testing.T) {
	srv, _ := startBufconn(t)
	srv.SetServing("", true)

	srv.health.Shutdown()

	resp, err := srv.health.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Errorf("expected NOT_SERVING after shutdown, got %v", resp.GetStatus())
	}
}
