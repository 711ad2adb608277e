package model

import (
	"github.com/shopspring/decimal"
)

// Trade model, ID is the ledger sequence of the trade
type Trade struct {
	ID int64 `json:"id" gorm:"omitempty; primaryKey; autoIncrement:false;"`

	LogID int64 `json:"logID" gorm:"omitempty; not null; default:0; index;"` // journal line of the result

	Price    decimal.Decimal `json:"price" gorm:"omitempty; not null; default:0; type:decimal(36,18);"` // maker price
	Quantity decimal.Decimal `json:"quantity" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`
	Amount   decimal.Decimal `json:"amount" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`
	Time     int64           `json:"time" gorm:"omitempty; not null; default:0;"`

	TakerSide  int8   `json:"takerSide" gorm:"omitempty; not null; default:0; type:tinyint;"`
	TakerOrder int64  `json:"takerOrder" gorm:"omitempty; not null; default:0; index;"`
	MakerOrder int64  `json:"makerOrder" gorm:"omitempty; not null; default:0; index;"`
	Taker      string `json:"taker" gorm:"omitempty; not null; default:''; type:varchar(64);"`
	Maker      string `json:"maker" gorm:"omitempty; not null; default:''; type:varchar(64);"`

	Model
}
