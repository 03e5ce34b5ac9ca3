package api

import (
	"context"
	"math"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-engage/internal/config"
	"github.com/miradorstack/mirador-engage/internal/models"
)

type healthOnlyServer struct {
	UnimplementedEngagementServer
	lastWindow float64
}

func (h *healthOnlyServer) GetHealth(_ context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	var in HealthRequest
	if err := Decode(req, &in); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	h.lastWindow = in.WindowHours
	snap := &models.HealthSnapshot{Window: 6 * time.Hour, Count: 12, Mean: 0.2, HealthScore: 75, Status: models.HealthGood,
		Distribution: []models.BandStat{{Band: models.BandMedium, Lower: 0.1, Upper: 0.2, Count: 12, Percentage: 100}}}
	return Encode(HealthResponse{Available: true, Snapshot: ToSnapshotMessage(snap)})
}

func TestEncodeDecode(t *testing.T) {
	in := BalanceRequest{
		Dataset:  DatasetMessage{Features: [][]float64{{1, 2}, {3, 4}}, Labels: []string{"a", "b"}},
		Strategy: "adasyn",
		K:        3,
		Seed:     7,
	}
	msg, err := Encode(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := msg.GetFields()["strategy"].GetStringValue(); got != "adasyn" {
		t.Fatalf("unexpected strategy field %q", got)
	}

	var out BalanceRequest
	if err := Decode(msg, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.K != 3 || out.Seed != 7 || out.Dataset.Features[1][0] != 3 || out.Dataset.Labels[1] != "b" {
		t.Fatalf("unexpected decoded request %+v", out)
	}

	var empty AlertsRequest
	if err := Decode(nil, &empty); err != nil || empty.Limit != 0 {
		t.Fatalf("nil struct should decode to zero value, got %+v %v", empty, err)
	}
}

func TestDistributionMessageUnbounded(t *testing.T) {
	msg := ToDistributionMessage(models.ClassDistribution{
		Counts:         map[string]int{"a": 4, "b": 0},
		Total:          4,
		ImbalanceRatio: math.Inf(1),
	})
	if !msg.Unbounded || msg.ImbalanceRatio != 0 {
		t.Fatalf("expected unbounded ratio, got %+v", msg)
	}
	if _, err := Encode(msg); err != nil {
		t.Fatalf("unbounded distribution must encode: %v", err)
	}
}

func TestFromDatasetMessageRejectsRagged(t *testing.T) {
	_, err := FromDatasetMessage(DatasetMessage{Features: [][]float64{{1, 2}, {3}}, Labels: []string{"a", "b"}})
	if err == nil {
		t.Fatalf("expected ragged dataset error")
	}
}

func TestServerRoundTrip(t *testing.T) {
	lis := bufconn.Listen(1 << 20)
	impl := &healthOnlyServer{}
	srv := newServer(config.ServerConfig{GracefulTimeout: time.Second}, lis, impl)
	go func() { _ = srv.Start() }()
	defer srv.Shutdown(context.Background())

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	client := NewClient(conn)

	resp, err := client.Health(ctx, HealthRequest{WindowHours: 6})
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	if !resp.Available || resp.Snapshot == nil || resp.Snapshot.HealthScore != 75 || resp.Snapshot.WindowHours != 6 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if impl.lastWindow != 6 {
		t.Fatalf("expected window to reach the server, got %v", impl.lastWindow)
	}

	if _, err := client.Performance(ctx); status.Code(err) != codes.Unimplemented {
		t.Fatalf("expected unimplemented, got %v", err)
	}
}
