package xgrpc

import (
	"context"

	"clob/pkg/ledger"
	"clob/pkg/ome"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// Client of ome.OmeService
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Dial connects to target without TLS, calls use the json codec
func Dial(target string, opts ...grpc.DialOption) (*grpc.ClientConn, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(Codec)),
	}, opts...)
	return grpc.NewClient(target, opts...)
}

func (c *Client) invoke(ctx context.Context, method string, in, out interface{}) error {
	err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, grpc.CallContentSubtype(Codec))
	if err != nil {
		return FromStatus(err)
	}
	return nil
}

func (c *Client) Submit(ctx context.Context, in *SubmitRequest) (res ome.Result, err error) {
	out := new(SubmitResponse)
	err = c.invoke(ctx, "Submit", in, out)
	return out.Result, err
}

func (c *Client) Cancel(ctx context.Context, symbol string, orderID int64) (found bool, err error) {
	out := new(CancelResponse)
	err = c.invoke(ctx, "Cancel", &CancelRequest{Symbol: symbol, OrderID: orderID}, out)
	return out.Found, err
}

func (c *Client) Depth(ctx context.Context, symbol string, levels int) (snap ome.DepthSnapshot, err error) {
	out := new(DepthResponse)
	err = c.invoke(ctx, "Depth", &DepthRequest{Symbol: symbol, Levels: levels}, out)
	return out.Snapshot, err
}

func (c *Client) TradesSince(ctx context.Context, symbol string, seq int64) (trades []ledger.Trade, err error) {
	out := new(TradesSinceResponse)
	err = c.invoke(ctx, "TradesSince", &TradesSinceRequest{Symbol: symbol, Seq: seq}, out)
	return out.Trades, err
}
