package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "mirador.engage.v1.EngagementMonitor"

// Method names exposed by the service.
const (
	MethodAnalyzeImbalance    = "AnalyzeImbalance"
	MethodBalanceDataset      = "BalanceDataset"
	MethodSplitDataset        = "SplitDataset"
	MethodPredict             = "Predict"
	MethodGetHealth           = "GetHealth"
	MethodDetectAnomaly       = "DetectAnomaly"
	MethodCheckDataQuality    = "CheckDataQuality"
	MethodRecentAlerts        = "RecentAlerts"
	MethodGetPerformance      = "GetPerformance"
	MethodGetImbalanceMetrics = "GetImbalanceMetrics"
	MethodHealthCheck         = "HealthCheck"
)

// EngagementServer is the server API for the engagement monitor. Every
// message is a google.protobuf.Struct holding the JSON form of the request
// and response types in this package.
type EngagementServer interface {
	AnalyzeImbalance(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BalanceDataset(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SplitDataset(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Predict(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetHealth(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DetectAnomaly(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckDataQuality(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecentAlerts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPerformance(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetImbalanceMetrics(context.Context, *structpb.Struct) (*structpb.Struct, error)
	HealthCheck(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedEngagementServer answers Unimplemented for every method.
// Embed it to implement a subset of the service.
type UnimplementedEngagementServer struct{}

func unimplemented(method string) error {
	return status.Errorf(codes.Unimplemented, "method %s not implemented", method)
}

func (UnimplementedEngagementServer) AnalyzeImbalance(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodAnalyzeImbalance)
}
func (UnimplementedEngagementServer) BalanceDataset(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodBalanceDataset)
}
func (UnimplementedEngagementServer) SplitDataset(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodSplitDataset)
}
func (UnimplementedEngagementServer) Predict(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodPredict)
}
func (UnimplementedEngagementServer) GetHealth(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodGetHealth)
}
func (UnimplementedEngagementServer) DetectAnomaly(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodDetectAnomaly)
}
func (UnimplementedEngagementServer) CheckDataQuality(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodCheckDataQuality)
}
func (UnimplementedEngagementServer) RecentAlerts(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodRecentAlerts)
}
func (UnimplementedEngagementServer) GetPerformance(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodGetPerformance)
}
func (UnimplementedEngagementServer) GetImbalanceMetrics(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodGetImbalanceMetrics)
}
func (UnimplementedEngagementServer) HealthCheck(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented(MethodHealthCheck)
}

type unaryMethod func(EngagementServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func handler(name string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(EngagementServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			next := func(ctx context.Context, req any) (any, error) {
				return call(srv.(EngagementServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, next)
		},
	}
}

// ServiceDesc describes the engagement monitor service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EngagementServer)(nil),
	Methods: []grpc.MethodDesc{
		handler(MethodAnalyzeImbalance, EngagementServer.AnalyzeImbalance),
		handler(MethodBalanceDataset, EngagementServer.BalanceDataset),
		handler(MethodSplitDataset, EngagementServer.SplitDataset),
		handler(MethodPredict, EngagementServer.Predict),
		handler(MethodGetHealth, EngagementServer.GetHealth),
		handler(MethodDetectAnomaly, EngagementServer.DetectAnomaly),
		handler(MethodCheckDataQuality, EngagementServer.CheckDataQuality),
		handler(MethodRecentAlerts, EngagementServer.RecentAlerts),
		handler(MethodGetPerformance, EngagementServer.GetPerformance),
		handler(MethodGetImbalanceMetrics, EngagementServer.GetImbalanceMetrics),
		handler(MethodHealthCheck, EngagementServer.HealthCheck),
	},
	Streams: []grpc.StreamDesc{},
}

// RegisterEngagementServer registers srv with s.
func RegisterEngagementServer(s grpc.ServiceRegistrar, srv EngagementServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// FullMethod returns the gRPC path for method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}
