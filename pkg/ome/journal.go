package ome

import (
	"encoding/json"
	"errors"
	"fmt"

	"clob/pkg/book"
	"clob/pkg/filedb"
	"clob/pkg/ledger"
	"clob/pkg/xnats"

	"github.com/shopspring/decimal"
)

// OmeLog is one journal line. A command line is written before the command is
// applied; the result line that follows carries its outcome.
type OmeLog struct {
	LogID  int64  `json:"logID"`
	Ts     int64  `json:"ts"`
	MsgSeq uint64 `json:"msgSeq,omitempty"` // nats stream sequence of the command, 0 for grpc

	Cmd    *xnats.Command `json:"cmd,omitempty"`
	Result *OmeResult     `json:"result,omitempty"`
}

type OmeResult struct {
	CmdLogID int64 `json:"cmdLogID"`

	Order     *OrderLog      `json:"order,omitempty"`     // submitted order, final state
	Makers    []OrderLog     `json:"makers,omitempty"`    // resting orders traded against, final state
	Trades    []ledger.Trade `json:"trades,omitempty"`    // trades of a submit
	Cancelled *OrderLog      `json:"cancelled,omitempty"` // order removed by a cancel
	Reject    string         `json:"reject,omitempty"`    // rejection reason
	Error     string         `json:"error,omitempty"`     // halting error
}

// OrderLog order state as written to the journal
type OrderLog struct {
	ID       int64           `json:"id"`
	Seq      int64           `json:"seq"`
	Owner    string          `json:"owner,omitempty"`
	Side     book.Side       `json:"side"`
	Kind     book.Kind       `json:"kind"`
	Price    decimal.Decimal `json:"price"`
	OrigQty  decimal.Decimal `json:"origQty"`
	Quantity decimal.Decimal `json:"quantity"`
	Status   book.Status     `json:"status"`
	Time     int64           `json:"time"`
}

func toOrderLog(o book.Order) OrderLog {
	return OrderLog{
		ID:       o.ID,
		Seq:      o.Seq,
		Owner:    o.Owner,
		Side:     o.Side,
		Kind:     o.Kind,
		Price:    o.Price,
		OrigQty:  o.OrigQty,
		Quantity: o.Quantity,
		Status:   o.Status,
		Time:     o.Time,
	}
}

// outcome of one command
type outcome struct {
	res   Result
	found bool
	err   error
}

// ParseSubmit turns a wire request into an engine request
func ParseSubmit(r *xnats.SubmitReq) (req SubmitReq, err error) {
	req.Side, err = book.ParseSide(r.Side)
	if err != nil {
		return req, Reject(ReasonInvalidSide)
	}
	req.Kind, err = book.ParseKind(r.Kind)
	if err != nil {
		return req, Reject(ReasonInvalidKind)
	}
	req.Price = r.Price
	req.Quantity = r.Quantity
	req.Owner = r.Owner
	return req, nil
}

// execute applies a journaled command to e. ts is the command's journal time,
// used as admission time so a replay rebuilds identical orders and trades.
func execute(e *Engine, cmd *xnats.Command, ts int64, cmdLogID int64) (out outcome, r *OmeResult) {
	r = &OmeResult{CmdLogID: cmdLogID}

	switch {
	case cmd.Type == xnats.CmdTypeSubmit && cmd.Submit != nil:
		var req SubmitReq
		req, out.err = ParseSubmit(cmd.Submit)
		if out.err == nil {
			req.Time = ts
			out.res, out.err = e.Submit(req)
		}
		if out.err == nil {
			ol := OrderLog{
				ID:       out.res.OrderID,
				Seq:      out.res.Seq,
				Owner:    req.Owner,
				Side:     req.Side,
				Kind:     req.Kind,
				Price:    req.Price.Decimal,
				OrigQty:  req.Quantity,
				Quantity: out.res.Remaining,
				Status:   out.res.Status,
				Time:     ts,
			}
			if req.Kind == book.KindMarket {
				ol.Price = decimal.Zero
			}
			r.Order = &ol
			r.Trades = out.res.Trades
			for _, m := range out.res.Makers {
				r.Makers = append(r.Makers, toOrderLog(m))
			}
		}

	case cmd.Type == xnats.CmdTypeCancel && cmd.Cancel != nil:
		var o book.Order
		o, _ = e.Order(cmd.Cancel.OrderID)
		out.found, out.err = e.Cancel(cmd.Cancel.OrderID)
		if out.err == nil && out.found {
			o.Status = book.StatusCancelled
			ol := toOrderLog(o)
			r.Cancelled = &ol
		}

	default:
		out.err = Reject(ReasonInvalidCommand)
	}

	if reason, ok := RejectReason(out.err); ok {
		r.Reject = string(reason)
	} else if out.err != nil {
		r.Error = out.err.Error()
	}

	return
}

// ReplayStats what a replay went through
type ReplayStats struct {
	Commands  int
	Results   int
	LastLogID int64
	LastSeq   uint64 // latest nats stream sequence seen in a command

	// Pending command whose result line is missing, the journal ended between the two
	Pending *OmeLog
	// PendingResult outcome of Pending as re-derived by the replay
	PendingResult *OmeResult
}

// ReplayInto rebuilds e by re-applying every command of the journal in log
// order. Result lines are only counted, the replay derives them again.
func ReplayInto(e *Engine, fdb *filedb.Filedb) (st ReplayStats, err error) {
	err = fdb.Scan(func(line string) error {
		var l OmeLog
		err := json.Unmarshal([]byte(line), &l)
		if err != nil {
			return fmt.Errorf("journal line after logID %d: %w", st.LastLogID, err)
		}
		if l.LogID <= st.LastLogID {
			return fmt.Errorf("journal logID %d after %d is not increasing", l.LogID, st.LastLogID)
		}
		st.LastLogID = l.LogID

		if l.Result != nil {
			st.Results++
			if st.Pending != nil && st.Pending.LogID == l.Result.CmdLogID {
				st.Pending, st.PendingResult = nil, nil
			}
			return nil
		}
		if l.Cmd == nil {
			return nil
		}

		st.Commands++
		if l.MsgSeq > 0 {
			st.LastSeq = l.MsgSeq
		}
		out, r := execute(e, l.Cmd, l.Ts, l.LogID)
		if out.err != nil && errors.Is(out.err, ErrInvariant) {
			return out.err
		}
		st.Pending, st.PendingResult = &l, r
		return nil
	})

	return
}

// Replay rebuilds the engine of symbol from a journal file
func Replay(symbol, path string, opts ...Option) (e *Engine, st ReplayStats, err error) {
	fdb, err := filedb.New(path)
	if err != nil {
		return
	}
	defer fdb.Close()

	e = NewEngine(symbol, opts...)
	st, err = ReplayInto(e, fdb)
	return
}
