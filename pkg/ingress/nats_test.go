package ingress_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"clob/pkg/ingress"
	"clob/pkg/xnats"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
)

type fakeJS struct {
	mu   sync.Mutex
	subj []string
	cmds []xnats.Command
}

func (f *fakeJS) Publish(subj string, data []byte, opts ...nats.PubOpt) (*nats.PubAck, error) {
	var cmd xnats.Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subj = append(f.subj, subj)
	f.cmds = append(f.cmds, cmd)
	return &nats.PubAck{Stream: xnats.CmdStream, Sequence: uint64(len(f.cmds))}, nil
}

func TestNext(t *testing.T) {
	w := ingress.New(nil, "BTC_USDT", ingress.DefaultFlow(), 1)

	submits, cancels := 0, 0
	ids := map[string]bool{}
	for i := 0; i < 2000; i++ {
		cmd := w.Next()
		require.False(t, ids[cmd.ID])
		ids[cmd.ID] = true

		switch cmd.Type {
		case xnats.CmdTypeSubmit:
			submits++
			s := cmd.Submit
			require.True(t, s.Quantity.IsPositive())
			if s.Kind == "MARKET" {
				require.False(t, s.Price.Valid)
			} else {
				require.True(t, s.Price.Decimal.IsPositive())
			}
		case xnats.CmdTypeCancel:
			cancels++
			require.True(t, cmd.Cancel.OrderID >= 1 && cmd.Cancel.OrderID <= int64(submits))
		default:
			t.Fatalf("unexpected type %s", cmd.Type)
		}
	}
	require.Greater(t, submits, 0)
	require.Greater(t, cancels, 0)
}

func TestRun(t *testing.T) {
	js := &fakeJS{}
	w := ingress.New(js, "eth_usdt", ingress.DefaultFlow(), 2)

	st := w.Run(context.Background(), 500, 4)
	require.Equal(t, int64(500), st.Sent)
	require.Equal(t, int64(0), st.Failed)
	require.Len(t, js.cmds, 500)
	for _, s := range js.subj {
		require.Equal(t, "OME.ETH_USDT.Cmd", s)
	}
}
