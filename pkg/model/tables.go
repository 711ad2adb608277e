package model

import (
	"strings"

	"gorm.io/gorm"
)

// OrderTable generates different table names based on the trading pair
func OrderTable(symbol string) func(tx *gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Table(strings.ToLower(symbol + "_orders"))
	}
}

// TradeTable generates different table names based on the trading pair
func TradeTable(symbol string) func(tx *gorm.DB) *gorm.DB {
	return func(tx *gorm.DB) *gorm.DB {
		return tx.Table(strings.ToLower(symbol + "_trades"))
	}
}

// Migrate creates the lastkv table and the tables of every symbol
func Migrate(db *gorm.DB, symbols ...string) (err error) {
	err = db.AutoMigrate(Lastkv{})
	if err != nil {
		return
	}
	for _, s := range symbols {
		err = db.Scopes(OrderTable(s)).AutoMigrate(Order{})
		if err != nil {
			return
		}
		err = db.Scopes(TradeTable(s)).AutoMigrate(Trade{})
		if err != nil {
			return
		}
	}
	return
}
