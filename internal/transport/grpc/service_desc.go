package grpcx

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// Сервис realtime.v1.Ingest описан вручную поверх well-known типов,
// поэтому кодогенерация не нужна:
//
//	service Ingest {
//	  rpc Emit(google.protobuf.Struct) returns (google.protobuf.Struct);
//	  rpc Stats(google.protobuf.Empty) returns (google.protobuf.Struct);
//	}
const (
	ServiceName       = "realtime.v1.Ingest"
	MethodEmit        = "/realtime.v1.Ingest/Emit"
	MethodStats       = "/realtime.v1.Ingest/Stats"
	protoMetadataFile = "realtime/v1/ingest.proto"
)

type IngestServer interface {
	Emit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Stats(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

var IngestServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*IngestServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Emit", Handler: emitHandler},
		{MethodName: "Stats", Handler: statsHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: protoMetadataFile,
}

func emitHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IngestServer).Emit(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodEmit}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IngestServer).Emit(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func statsHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(IngestServer).Stats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: MethodStats}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(IngestServer).Stats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// IngestClient — клиент для внутренних сервисов и тестов.
type IngestClient struct {
	cc grpc.ClientConnInterface
}

func NewIngestClient(cc grpc.ClientConnInterface) *IngestClient {
	return &IngestClient{cc: cc}
}

func (c *IngestClient) Emit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodEmit, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *IngestClient) Stats(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, MethodStats, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
