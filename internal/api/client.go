package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Client calls a remote engagement monitor.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Call invokes method with req and decodes the reply into resp.
func (c *Client) Call(ctx context.Context, method string, req, resp any, opts ...grpc.CallOption) error {
	in, err := Encode(req)
	if err != nil {
		return err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return err
	}
	return Decode(out, resp)
}

// Health fetches the health snapshot for the given window.
func (c *Client) Health(ctx context.Context, req HealthRequest) (HealthResponse, error) {
	var resp HealthResponse
	err := c.Call(ctx, MethodGetHealth, req, &resp)
	return resp, err
}

// RecentAlerts lists recent alerts.
func (c *Client) RecentAlerts(ctx context.Context, req AlertsRequest) (AlertsResponse, error) {
	var resp AlertsResponse
	err := c.Call(ctx, MethodRecentAlerts, req, &resp)
	return resp, err
}

// Performance fetches serving statistics.
func (c *Client) Performance(ctx context.Context) (PerformanceMessage, error) {
	var resp PerformanceMessage
	err := c.Call(ctx, MethodGetPerformance, struct{}{}, &resp)
	return resp, err
}

// Predict scores a single post remotely.
func (c *Client) Predict(ctx context.Context, req PredictRequest) (PredictResponse, error) {
	var resp PredictResponse
	err := c.Call(ctx, MethodPredict, req, &resp)
	return resp, err
}
