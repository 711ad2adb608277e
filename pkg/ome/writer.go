package ome

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"clob/pkg/filedb"
	"clob/pkg/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StartWriter write data from filedb to mysql, retrying until ctx is done
func (w *Worker) StartWriter(ctx context.Context) (err error) {
	round := 0
	for ctx.Err() == nil {
		round++
		logger.Infof("%s StartWriter round:%d started", w.Name, round)
		err = w.FiledbToMySQL(ctx)
		if err != nil && ctx.Err() == nil {
			logger.Errorf("%s StartWriter round:%d failed with err:%s", w.Name, round, err)
		} else {
			logger.Infof("%s StartWriter round:%d done", w.Name, round)
		}
		sleep(ctx, time.Second)
	}
	return ctx.Err()
}

// App name of the worker in lastkv
func (w *Worker) App() string {
	return strings.ToLower(w.Name)
}

// FiledbToMySQL follows the journal and writes the result lines to mysql
func (w *Worker) FiledbToMySQL(ctx context.Context) (err error) {
	kv, err := model.CheckoutLastKv(w.DB, w.App(), model.LASTKV_K_SAVED_LOG_ID)
	if err != nil {
		return
	}
	w.SavedLogID = kv.Val

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	fdb := &filedb.Filedb{FilePath: w.JournalPath, Handler: w.ParseAndWriteLogs}
	ch := make(chan string, 1000)

	go func() {
		err := fdb.Tailf(ctx, ch)
		if err != nil && ctx.Err() == nil {
			logger.Errorf("%s Tailf failed with err:%s", w.Name, err)
		}
		cancel()
	}()

	return fdb.Drain(ctx, ch, 100)
}

type orderUpdate struct {
	quantity decimal.Decimal
	status   int8
	trades   int64
	amount   decimal.Decimal
}

// ParseAndWriteLogs writes one batch of journal lines in a transaction.
// Lines at or below SavedLogID were written before and are skipped.
func (w *Worker) ParseAndWriteLogs(ss []string) (err error) {
	latestLogID := int64(0)

	newOrders := make([]model.Order, 0)
	newTrades := make([]model.Trade, 0)
	updateOrders := make(map[int64]*orderUpdate)
	updateIDs := make([]int64, 0)

	update := func(id int64) *orderUpdate {
		u, ok := updateOrders[id]
		if !ok {
			u = &orderUpdate{amount: decimal.Zero}
			updateOrders[id] = u
			updateIDs = append(updateIDs, id)
		}
		return u
	}

	for _, s := range ss {
		ol := new(OmeLog)
		err = json.Unmarshal([]byte(s), ol)
		if err != nil {
			return
		}
		if ol.LogID <= w.SavedLogID {
			continue
		}
		latestLogID = ol.LogID

		r := ol.Result
		if r == nil {
			continue
		}

		if r.Order != nil {
			o := r.Order
			order := model.Order{
				ID:       o.ID,
				Seq:      o.Seq,
				LogID:    r.CmdLogID,
				Owner:    o.Owner,
				Side:     int8(o.Side),
				Type:     int8(o.Kind),
				Status:   int8(o.Status),
				Trades:   int64(len(r.Trades)),
				Time:     o.Time,
				Price:    o.Price,
				Quantity: o.Quantity,
				OrigQty:  o.OrigQty,
				Amount:   decimal.Zero,
			}
			for _, t := range r.Trades {
				order.Amount = order.Amount.Add(t.Amount())
			}
			newOrders = append(newOrders, order)
		}

		for _, t := range r.Trades {
			newTrades = append(newTrades, model.Trade{
				ID:         t.Seq,
				LogID:      ol.LogID,
				Price:      t.Price,
				Quantity:   t.Quantity,
				Amount:     t.Amount(),
				Time:       t.Time,
				TakerSide:  int8(t.TakerSide),
				TakerOrder: t.TakerOrderID,
				MakerOrder: t.MakerOrderID,
				Taker:      t.TakerOwner,
				Maker:      t.MakerOwner,
			})
			u := update(t.MakerOrderID)
			u.trades++
			u.amount = u.amount.Add(t.Amount())
		}

		for _, m := range r.Makers {
			u := update(m.ID)
			u.quantity = m.Quantity
			u.status = int8(m.Status)
		}

		if r.Cancelled != nil {
			u := update(r.Cancelled.ID)
			u.quantity = r.Cancelled.Quantity
			u.status = int8(r.Cancelled.Status)
		}
	}

	if latestLogID == 0 {
		return
	}

	db := w.DB
	err = db.Transaction(func(tx *gorm.DB) (err error) {
		if len(newOrders) > 0 {
			err = tx.Scopes(model.OrderTable(w.Symbol)).CreateInBatches(newOrders, 100).Error
			if err != nil {
				return
			}
		}

		if len(newTrades) > 0 {
			err = tx.Scopes(model.TradeTable(w.Symbol)).CreateInBatches(newTrades, 100).Error
			if err != nil {
				return
			}
		}

		// after the inserts, a maker may rest and trade within one batch
		for _, id := range updateIDs {
			u := updateOrders[id]
			values := map[string]interface{}{
				"quantity": u.quantity,
				"status":   u.status,
			}
			if u.trades > 0 {
				values["trades"] = gorm.Expr("`trades` + ?", u.trades)
				values["amount"] = gorm.Expr("`amount` + ?", u.amount)
			}
			err = tx.Scopes(model.OrderTable(w.Symbol)).Where("`id`=?", id).Updates(values).Error
			if err != nil {
				return
			}
		}

		return model.AdvanceLastKv(tx, w.App(), model.LASTKV_K_SAVED_LOG_ID, latestLogID)
	})
	if err != nil {
		return
	}

	logger.Tracef("%s ParseAndWriteLogs saved orders:%d, trades:%d, updates:%d to logID:%d",
		w.Name, len(newOrders), len(newTrades), len(updateIDs), latestLogID)
	w.SavedLogID = latestLogID

	return
}
