package ome_test

import (
	"context"
	"testing"

	"clob/pkg/book"
	"clob/pkg/filedb"
	"clob/pkg/model"
	"clob/pkg/xnats"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), model.GormConfig(false))
	require.Nil(t, err)
	require.Nil(t, model.Migrate(db, "BTC_USDT"))
	return db
}

func journalLines(t *testing.T, path string) []string {
	t.Helper()
	fdb, err := filedb.New(path)
	require.Nil(t, err)
	defer fdb.Close()

	lines := []string{}
	require.Nil(t, fdb.Scan(func(line string) error {
		lines = append(lines, line)
		return nil
	}))
	return lines
}

func TestParseAndWriteLogs(t *testing.T) {
	db := openTestDB(t)
	w, stop := startWorker(t, t.TempDir(), nil)
	ctx := context.Background()

	_, err := w.Submit(ctx, wireLimit("SELL", "2", "100"))
	require.Nil(t, err)
	_, err = w.Submit(ctx, wireLimit("SELL", "3", "101"))
	require.Nil(t, err)
	_, err = w.Submit(ctx, xnats.SubmitReq{Side: "BUY", Kind: "MARKET", Quantity: d("3"), Owner: "t"})
	require.Nil(t, err)
	_, err = w.Submit(ctx, xnats.SubmitReq{Side: "BUY", Kind: "MARKET", Quantity: d("-1")})
	require.NotNil(t, err)
	_, err = w.Cancel(ctx, 2)
	require.Nil(t, err)
	stop()

	w.DB = db
	_, err = model.CheckoutLastKv(db, w.App(), model.LASTKV_K_SAVED_LOG_ID)
	require.Nil(t, err)

	lines := journalLines(t, w.JournalPath)
	require.Len(t, lines, 10)

	// two batches, the second one updates orders of the first
	require.Nil(t, w.ParseAndWriteLogs(lines[:4]))
	require.Equal(t, int64(4), w.SavedLogID)
	require.Nil(t, w.ParseAndWriteLogs(lines))
	require.Equal(t, int64(10), w.SavedLogID)

	var orders []model.Order
	require.Nil(t, db.Scopes(model.OrderTable(w.Symbol)).Order("id").Find(&orders).Error)
	require.Len(t, orders, 3)

	require.Equal(t, int8(book.StatusFilled), orders[0].Status)
	require.True(t, orders[0].Quantity.IsZero())
	require.Equal(t, int64(1), orders[0].Trades)
	require.True(t, orders[0].Amount.Equal(d("200")))

	require.Equal(t, int8(book.StatusCancelled), orders[1].Status)
	require.True(t, orders[1].Quantity.Equal(d("2")))
	require.True(t, orders[1].OrigQty.Equal(d("3")))
	require.Equal(t, int64(1), orders[1].Trades)
	require.True(t, orders[1].Amount.Equal(d("101")))

	require.Equal(t, int8(book.StatusFilled), orders[2].Status)
	require.Equal(t, int8(book.KindMarket), orders[2].Type)
	require.Equal(t, int64(2), orders[2].Trades)
	require.True(t, orders[2].Amount.Equal(d("301")))

	var trades []model.Trade
	require.Nil(t, db.Scopes(model.TradeTable(w.Symbol)).Order("id").Find(&trades).Error)
	require.Len(t, trades, 2)
	require.Equal(t, int64(1), trades[0].ID)
	require.Equal(t, int64(1), trades[0].MakerOrder)
	require.Equal(t, int64(3), trades[0].TakerOrder)
	require.Equal(t, "t", trades[1].Taker)

	kv, err := model.CheckoutLastKv(db, w.App(), model.LASTKV_K_SAVED_LOG_ID)
	require.Nil(t, err)
	require.Equal(t, int64(10), kv.Val)

	// written lines are skipped
	require.Nil(t, w.ParseAndWriteLogs(lines))
	var n int64
	require.Nil(t, db.Scopes(model.TradeTable(w.Symbol)).Count(&n).Error)
	require.Equal(t, int64(2), n)
}
