package xgrpc

import (
	"context"

	"clob/pkg/ledger"
	"clob/pkg/ome"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
)

const ServiceName = "ome.OmeService"

type SubmitRequest struct {
	Symbol   string              `json:"symbol"`
	Side     string              `json:"side"`
	Kind     string              `json:"kind"`
	Price    decimal.NullDecimal `json:"price"`
	Quantity decimal.Decimal     `json:"quantity"`
	Owner    string              `json:"owner,omitempty"`
}

type SubmitResponse struct {
	Result ome.Result `json:"result"`
}

type CancelRequest struct {
	Symbol  string `json:"symbol"`
	OrderID int64  `json:"orderID"`
}

type CancelResponse struct {
	Found bool `json:"found"`
}

type DepthRequest struct {
	Symbol string `json:"symbol"`
	Levels int    `json:"levels"` // levels per side, 0 gives empty sides, negative is invalid
}

type DepthResponse struct {
	Snapshot ome.DepthSnapshot `json:"snapshot"`
}

type TradesSinceRequest struct {
	Symbol string `json:"symbol"`
	Seq    int64  `json:"seq"`
}

type TradesSinceResponse struct {
	Trades []ledger.Trade `json:"trades"`
}

// OmeServiceServer is the server API of ome.OmeService
type OmeServiceServer interface {
	Submit(context.Context, *SubmitRequest) (*SubmitResponse, error)
	Cancel(context.Context, *CancelRequest) (*CancelResponse, error)
	Depth(context.Context, *DepthRequest) (*DepthResponse, error)
	TradesSince(context.Context, *TradesSinceRequest) (*TradesSinceResponse, error)
}

func RegisterOmeServiceServer(s grpc.ServiceRegistrar, srv OmeServiceServer) {
	s.RegisterService(&OmeServiceDesc, srv)
}

func unary[Req any, Resp any](method string, call func(OmeServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(OmeServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + method,
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(OmeServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var OmeServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*OmeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Submit", OmeServiceServer.Submit),
		unary("Cancel", OmeServiceServer.Cancel),
		unary("Depth", OmeServiceServer.Depth),
		unary("TradesSince", OmeServiceServer.TradesSince),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ome.proto",
}
