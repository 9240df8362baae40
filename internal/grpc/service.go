package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "ledger.v1.Consensus"

// TokenMetadataKey carries a hex-encoded signed permission token on calls
// that require one.
const TokenMetadataKey = "x-ledger-token"

// ConsensusServer is the server API for the consensus service. Transactions,
// blocks and headers travel in their canonical encodings.
type ConsensusServer interface {
	// VerifyTransaction checks a raw transaction against the confirmed outputs.
	VerifyTransaction(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BoolValue, error)
	// SubmitTransaction adds a raw transaction to the pool and returns its id.
	SubmitTransaction(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	// SubmitBlock connects a raw block and returns its id.
	SubmitBlock(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	// GetTip returns the encoded best header.
	GetTip(context.Context, *emptypb.Empty) (*wrapperspb.BytesValue, error)
	// GetBlock returns the raw block with the given id.
	GetBlock(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	// GetBalance sums the confirmed address outputs of a 32-byte PKH.
	GetBalance(context.Context, *wrapperspb.BytesValue) (*wrapperspb.UInt64Value, error)
	// GetSpendable returns the serialized address outputs of a PKH with the
	// pool applied, ready for building a transfer.
	GetSpendable(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	// GetStatus reports the tip, the pool and the mining loop.
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unaryMethod[Req, Resp any](name string, call func(ConsensusServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ConsensusServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(ConsensusServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes the consensus service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConsensusServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("VerifyTransaction", ConsensusServer.VerifyTransaction),
		unaryMethod("SubmitTransaction", ConsensusServer.SubmitTransaction),
		unaryMethod("SubmitBlock", ConsensusServer.SubmitBlock),
		unaryMethod("GetTip", ConsensusServer.GetTip),
		unaryMethod("GetBlock", ConsensusServer.GetBlock),
		unaryMethod("GetBalance", ConsensusServer.GetBalance),
		unaryMethod("GetSpendable", ConsensusServer.GetSpendable),
		unaryMethod("GetStatus", ConsensusServer.GetStatus),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ledger/v1/consensus.proto",
}

// RegisterConsensusServer registers srv on s.
func RegisterConsensusServer(s grpc.ServiceRegistrar, srv ConsensusServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ConsensusClient is the client API for the consensus service.
type ConsensusClient struct {
	cc grpc.ClientConnInterface
}

// NewConsensusClient wraps a client connection.
func NewConsensusClient(cc grpc.ClientConnInterface) *ConsensusClient {
	return &ConsensusClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, name string, in interface{}, opts ...grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	if err := cc.Invoke(ctx, fullMethod(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *ConsensusClient) VerifyTransaction(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BoolValue, error) {
	return invoke[wrapperspb.BoolValue](ctx, c.cc, "VerifyTransaction", in, opts...)
}

func (c *ConsensusClient) SubmitTransaction(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return invoke[wrapperspb.BytesValue](ctx, c.cc, "SubmitTransaction", in, opts...)
}

func (c *ConsensusClient) SubmitBlock(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return invoke[wrapperspb.BytesValue](ctx, c.cc, "SubmitBlock", in, opts...)
}

func (c *ConsensusClient) GetTip(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return invoke[wrapperspb.BytesValue](ctx, c.cc, "GetTip", in, opts...)
}

func (c *ConsensusClient) GetBlock(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return invoke[wrapperspb.BytesValue](ctx, c.cc, "GetBlock", in, opts...)
}

func (c *ConsensusClient) GetBalance(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.UInt64Value, error) {
	return invoke[wrapperspb.UInt64Value](ctx, c.cc, "GetBalance", in, opts...)
}

func (c *ConsensusClient) GetSpendable(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	return invoke[wrapperspb.BytesValue](ctx, c.cc, "GetSpendable", in, opts...)
}

func (c *ConsensusClient) GetStatus(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke[structpb.Struct](ctx, c.cc, "GetStatus", in, opts...)
}
