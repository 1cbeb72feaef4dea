package traderiser

import "github.com/shopspring/decimal"

// PlaceTradeRequest is the body of POST /trading/trades/place/. Amount is the
// base stake; the platform multiplies it by its martingale multiplier raised
// to MartingaleLevel before settling.
type PlaceTradeRequest struct {
	MarketID        uint            `json:"market_id"`
	TradeTypeID     uint            `json:"trade_type_id"`
	Direction       string          `json:"direction"`
	Amount          decimal.Decimal `json:"amount"`
	AccountType     string          `json:"account_type"`
	UseMartingale   bool            `json:"use_martingale"`
	MartingaleLevel int             `json:"martingale_level"`
	RobotID         uint            `json:"robot_id,omitempty"`
	TargetProfit    decimal.Decimal `json:"target_profit"`
	StopLoss        decimal.Decimal `json:"stop_loss"`
}

// TradeResult is one settled trade in a placement response.
type TradeResult struct {
	ID              int64               `json:"id"`
	Direction       string              `json:"direction"`
	Amount          decimal.NullDecimal `json:"amount"`
	Profit          decimal.Decimal     `json:"profit"`
	IsWin           bool                `json:"is_win"`
	MartingaleLevel int                 `json:"martingale_level"`
	EntrySpot       decimal.NullDecimal `json:"entry_spot"`
	ExitSpot        decimal.NullDecimal `json:"exit_spot"`
	CurrentSpot     decimal.NullDecimal `json:"current_spot"`
	IsDemo          bool                `json:"is_demo"`
}

// PlaceTradeResponse is the success body of a placement.
type PlaceTradeResponse struct {
	Trades      []TradeResult   `json:"trades"`
	TotalProfit decimal.Decimal `json:"total_profit"`
	IsDemo      bool            `json:"is_demo"`
	Message     string          `json:"message"`
}

// Account is a trading account summary from the dashboard.
type Account struct {
	AccountType string          `json:"account_type"`
	Balance     decimal.Decimal `json:"balance"`
}

// Dashboard is the body of GET /dashboard/.
type Dashboard struct {
	User struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	} `json:"user"`
	Accounts      []Account `json:"accounts"`
	SessionActive bool      `json:"session_active"`
}

// Balance returns the balance of the account with the given type.
func (d *Dashboard) Balance(accountType string) (decimal.Decimal, bool) {
	for _, acc := range d.Accounts {
		if acc.AccountType == accountType {
			return acc.Balance, true
		}
	}
	return decimal.Zero, false
}

// Market is a tradable market.
type Market struct {
	ID               uint            `json:"id"`
	Name             string          `json:"name"`
	ProfitMultiplier decimal.Decimal `json:"profit_multiplier"`
}

// TradeType is a contract type such as "buy/sell" or "rise/fall".
type TradeType struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// Robot is an automated strategy offered by the platform.
type Robot struct {
	ID               uint            `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description"`
	Price            decimal.Decimal `json:"price"`
	AvailableForDemo bool            `json:"available_for_demo"`
	WinRate          int             `json:"win_rate"`
}

// UserRobot is a robot owned by the current user.
type UserRobot struct {
	ID          uint   `json:"id"`
	Robot       Robot  `json:"robot"`
	PurchasedAt string `json:"purchased_at"`
}
