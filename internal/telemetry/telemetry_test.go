package telemetry_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	"github.com/victornm/dramquiz/internal/domain"
	"github.com/victornm/dramquiz/internal/event"
	"github.com/victornm/dramquiz/internal/telemetry"
)

func TestMetrics_Subscribe(t *testing.T) {
	m := telemetry.NewMetrics(prometheus.NewRegistry())
	eb := event.NewBus()
	m.Subscribe(eb)
	ctx := context.Background()

	eb.Publish(ctx, domain.EventSessionStarted{SessionID: "s1", Mode: domain.ModeTimed})
	eb.Publish(ctx, domain.EventRoundResolved{SessionID: "s1", Outcome: domain.RoundOutcome{Correct: true, Reward: 150}})
	eb.Publish(ctx, domain.EventRoundResolved{SessionID: "s1", Outcome: domain.RoundOutcome{TimedOut: true}})
	eb.Publish(ctx, domain.EventRoundResolved{SessionID: "s1", Outcome: domain.RoundOutcome{}})
	eb.Publish(ctx, domain.EventSessionCompleted{Summary: domain.SessionSummary{SessionID: "s1", Mode: domain.ModeTimed}})
	eb.Publish(ctx, domain.EventPersistenceDeferred{SessionID: "s1", Attempts: 5})
	eb.Stop()

	require.Equal(t, 1.0, testutil.ToFloat64(m.SessionsStarted.WithLabelValues("timed")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RoundsResolved.WithLabelValues("correct")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RoundsResolved.WithLabelValues("timeout")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.RoundsResolved.WithLabelValues("incorrect")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.SessionsCompleted.WithLabelValues("timed")))
	require.Equal(t, 0.0, testutil.ToFloat64(m.SessionsRecorded))
	require.Equal(t, 1.0, testutil.ToFloat64(m.PersistenceDeferred))
	require.Equal(t, 1, testutil.CollectAndCount(m.RoundReward))
}

func TestMetrics_GinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := telemetry.NewMetrics(prometheus.NewRegistry())

	e := gin.New()
	e.Use(m.GinMiddleware())
	e.GET("/v1/sessions/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for _, path := range []string{"/v1/sessions/a", "/v1/sessions/b", "/nowhere"} {
		e.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	require.Equal(t, 2, testutil.CollectAndCount(m.HTTPRequests), "one series per route and status")
}

func TestRegisterHealth(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	s := grpc.NewServer(telemetry.GRPCServerInterceptor())
	h := telemetry.RegisterHealth(s)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client := healthpb.NewHealthClient(conn)
	ctx := context.Background()

	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, resp.Status)

	h.Resume()
	resp, err = client.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	require.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
