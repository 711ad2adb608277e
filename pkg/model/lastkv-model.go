package model

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Lastkv model
//
// Records progress values of an app, e.g. the last journal line written to mysql
// by the writer of ome_btc_usdt.
type Lastkv struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey;"`

	App string `json:"app" gorm:"omitempty; not null; default:''; type:varchar(64); uniqueindex:idx_app_key;"` // e.g ome_btc_usdt
	Key string `json:"key" gorm:"omitempty; not null; default:''; type:varchar(64); uniqueindex:idx_app_key;"` // e.g saved_log_id
	Val int64  `json:"val" gorm:"omitempty; not null; default:0;"`

	Model
}

const (
	LASTKV_K_SAVED_LOG_ID = "saved_log_id"
)

// CheckoutLastKv returns the row of app/key, creating it with zero when missing
func CheckoutLastKv(db *gorm.DB, app, key string) (kv Lastkv, err error) {
	kv = Lastkv{
		App: app,
		Key: key,
	}
	err = db.Model(Lastkv{}).Where("`app`=? and `key`=?", app, key).Limit(1).Find(&kv).Error
	if err != nil {
		return
	}
	if kv.ID > 0 {
		return
	}

	err = db.Model(Lastkv{}).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "app"}, {Name: "key"}},
			DoNothing: true,
		}).
		Create(&kv).Error
	return
}

// AdvanceLastKv raises the value of app/key to val, never lowering it
func AdvanceLastKv(tx *gorm.DB, app, key string, val int64) error {
	return tx.Model(Lastkv{}).
		Where("`app`=? and `key`=? and `val`<?", app, key, val).
		Update("val", val).Error
}
