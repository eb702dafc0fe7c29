package grpc

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/tradeforge/settlement/internal/application"
	"github.com/tradeforge/settlement/internal/domain"
)

type SettlementInternalService interface {
	GetOrderStatus(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// SettlementInternalServer exposes order state to sibling services that must
// not go through the public HTTP surface.
type SettlementInternalServer struct {
	service *application.Service
}

func NewSettlementInternalServer(service *application.Service) *SettlementInternalServer {
	return &SettlementInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc SettlementInternalService) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: "tradeforge.settlement.v1.SettlementInternalService",
		HandlerType: (*SettlementInternalService)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "GetOrderStatus",
				Handler:    getOrderStatusHandler(svc),
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "tradeforge/contracts/proto/settlement/v1/settlement_internal.proto",
	}, svc)
}

func (s *SettlementInternalServer) GetOrderStatus(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	hashVal := req.GetFields()["order_hash"]
	if hashVal == nil {
		return nil, status.Error(codes.InvalidArgument, "missing order_hash")
	}
	decoded, err := hexutil.Decode(hashVal.GetStringValue())
	if err != nil || len(decoded) != common.HashLength {
		return nil, status.Error(codes.InvalidArgument, "order_hash must be 0x-prefixed 32-byte hex")
	}

	res, err := s.service.OrderStatus(ctx, common.BytesToHash(decoded))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvalidInput):
			return nil, status.Error(codes.InvalidArgument, err.Error())
		case errors.Is(err, domain.ErrNotFound):
			return nil, status.Error(codes.NotFound, "order not found")
		default:
			return nil, status.Error(codes.Internal, "order status lookup failed")
		}
	}

	fields := map[string]any{
		"order_hash": res.OrderHash,
		"status":     res.Status,
	}
	if res.ConsumedAt != nil {
		fields["consumed_at"] = res.ConsumedAt.Unix()
	}
	if res.Record != nil {
		fields["record_id"] = res.Record.RecordID.String()
		fields["kind"] = res.Record.Kind
		fields["offerer"] = res.Record.Offerer
		fields["settled_at"] = res.Record.SettledAt.Unix()
	}
	resp, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "build response: %v", err)
	}
	return resp, nil
}

func getOrderStatusHandler(svc SettlementInternalService) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		req := &structpb.Struct{}
		if err := dec(req); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return svc.GetOrderStatus(ctx, req)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/tradeforge.settlement.v1.SettlementInternalService/GetOrderStatus",
		}
		handler := func(ctx context.Context, req any) (any, error) {
			typed, ok := req.(*structpb.Struct)
			if !ok {
				return nil, status.Error(codes.InvalidArgument, "invalid request type")
			}
			return svc.GetOrderStatus(ctx, typed)
		}
		return interceptor(ctx, req, info, handler)
	}
}
