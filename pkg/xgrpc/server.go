package xgrpc

import (
	"context"
	"errors"
	"net"
	"strings"

	"clob/pkg/ledger"
	"clob/pkg/ome"
	"clob/pkg/xlog"
	"clob/pkg/xnats"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

var logger = xlog.GetLogger()

// Backend routes calls to the engine of a symbol, see registry.Registry
type Backend interface {
	Submit(ctx context.Context, symbol string, req xnats.SubmitReq) (ome.Result, error)
	Cancel(ctx context.Context, symbol string, orderID int64) (bool, error)
	Depth(symbol string, maxLevels int) (ome.DepthSnapshot, error)
	TradesSince(symbol string, seq int64) ([]ledger.Trade, error)
}

type Server struct {
	Backend Backend
}

var _ OmeServiceServer = (*Server)(nil)

func (s *Server) Submit(ctx context.Context, in *SubmitRequest) (*SubmitResponse, error) {
	res, err := s.Backend.Submit(ctx, in.Symbol, xnats.SubmitReq{
		Side:     in.Side,
		Kind:     in.Kind,
		Price:    in.Price,
		Quantity: in.Quantity,
		Owner:    in.Owner,
	})
	if err != nil {
		return nil, ToStatus(err)
	}
	return &SubmitResponse{Result: res}, nil
}

func (s *Server) Cancel(ctx context.Context, in *CancelRequest) (*CancelResponse, error) {
	found, err := s.Backend.Cancel(ctx, in.Symbol, in.OrderID)
	if err != nil {
		return nil, ToStatus(err)
	}
	return &CancelResponse{Found: found}, nil
}

func (s *Server) Depth(ctx context.Context, in *DepthRequest) (*DepthResponse, error) {
	if in.Levels < 0 {
		return nil, status.Error(codes.InvalidArgument, "negative depth levels")
	}
	snap, err := s.Backend.Depth(in.Symbol, in.Levels)
	if err != nil {
		return nil, ToStatus(err)
	}
	return &DepthResponse{Snapshot: snap}, nil
}

func (s *Server) TradesSince(ctx context.Context, in *TradesSinceRequest) (*TradesSinceResponse, error) {
	trades, err := s.Backend.TradesSince(in.Symbol, in.Seq)
	if err != nil {
		return nil, ToStatus(err)
	}
	return &TradesSinceResponse{Trades: trades}, nil
}

const rejectPrefix = "rejected: "

// ToStatus maps engine errors to grpc status codes. A rejection keeps its
// reason in the message so that FromStatus can restore it.
func ToStatus(err error) error {
	if reason, ok := ome.RejectReason(err); ok {
		return status.Error(codes.InvalidArgument, rejectPrefix+string(reason))
	}
	switch {
	case errors.Is(err, ome.ErrHalted), errors.Is(err, ome.ErrInvariant):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, ome.ErrStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	}
	return status.Error(codes.Internal, err.Error())
}

// FromStatus turns an InvalidArgument rejection back into a *ome.RejectError,
// other errors are returned as they are
func FromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.InvalidArgument {
		return err
	}
	msg := st.Message()
	if !strings.HasPrefix(msg, rejectPrefix) {
		return err
	}
	return ome.Reject(ome.Reason(strings.TrimPrefix(msg, rejectPrefix)))
}

// NewServer returns a grpc server with ome.OmeService and the health service registered
func NewServer(b Backend, opts ...grpc.ServerOption) *grpc.Server {
	s := grpc.NewServer(opts...)
	RegisterOmeServiceServer(s, &Server{Backend: b})

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, hs)

	return s
}

// Serve listens on addr and serves until ctx is done
func Serve(ctx context.Context, addr string, b Backend) (err error) {
	logger.Infof("xgrpc Serve %s started", addr)
	defer func() {
		if err != nil {
			logger.Errorf("xgrpc Serve %s failed with err:%s", addr, err)
		} else {
			logger.Infof("xgrpc Serve %s done", addr)
		}
	}()

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return
	}

	s := NewServer(b)
	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	return s.Serve(lis)
}
