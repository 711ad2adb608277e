package model

import (
	"github.com/shopspring/decimal"
)

// Order model, one row per admitted order
type Order struct {
	ID  int64 `json:"id" gorm:"omitempty; primaryKey; autoIncrement:false;"`
	Seq int64 `json:"seq" gorm:"omitempty; not null; default:0;"` // admission sequence

	LogID int64 `json:"logID" gorm:"omitempty; not null; default:0; index;"` // journal line of the admission

	Owner  string `json:"owner" gorm:"omitempty; not null; default:''; type:varchar(64); index;"`
	Side   int8   `json:"side" gorm:"omitempty; not null; default:0; type:tinyint;"`   // 1 sell ask, 2 buy bid
	Type   int8   `json:"type" gorm:"omitempty; not null; default:0; type:tinyint;"`   // 1 limit, 2 market
	Status int8   `json:"status" gorm:"omitempty; not null; default:1; type:tinyint;"` // see OrderStatus*
	Trades int64  `json:"trades" gorm:"omitempty; not null; default:0;"`               // Current number of trades
	Time   int64  `json:"time" gorm:"omitempty; not null; default:0;"`                 // Admission time, nanoseconds

	Price    decimal.Decimal `json:"price" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`    // Zero for market orders
	Quantity decimal.Decimal `json:"quantity" gorm:"omitempty; not null; default:0; type:decimal(36,18);"` // Remaining quantity
	OrigQty  decimal.Decimal `json:"origQty" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`  // Quantity at the time of order creation
	Amount   decimal.Decimal `json:"amount" gorm:"omitempty; not null; default:0; type:decimal(36,18);"`   // Current total transaction amount

	Model
}

// Status values mirror book.Status
const (
	OrderStatusOpen            int8 = 1
	OrderStatusPartiallyFilled int8 = 2
	OrderStatusFilled          int8 = 3
	OrderStatusCancelled       int8 = 4

	OrderSideAsk int8 = 1
	OrderSideBid int8 = 2

	OrderTypeLimit  int8 = 1
	OrderTypeMarket int8 = 2
)
