package domain

import "time"

// Quote is the pricing engine's output: what the buyer pays and how the
// resulting order is classified.
type Quote struct {
	PayAmount int64  `json:"payAmount"`
	OrderType string `json:"orderType"`
}

// Price computes the amount payable for target given the user's current
// membership and, when the user is on an active plan, the scheme they hold.
// Pure. Rules in order:
//
//  1. Topups are always full price, never discounted.
//  2. Inactive (new or expired) users pay full price, even when the target
//     level differs from their last level.
//  3. An active same-level purchase is a renewal at full price.
//  4. An active different-level purchase is an upgrade: pay the price delta,
//     floored at 1 so no order is ever free or negative.
func Price(user *User, target Scheme, current *Scheme, now time.Time) Quote {
	switch {
	case target.Type == SchemeTypeTopup:
		return Quote{PayAmount: target.Price, OrderType: SchemeTypeTopup}
	case !user.Membership.ActiveAt(now):
		return Quote{PayAmount: target.Price, OrderType: target.Type}
	case current != nil && target.Level == current.Level:
		return Quote{PayAmount: target.Price, OrderType: target.Type}
	default:
		var currentPrice int64
		if current != nil {
			currentPrice = current.Price
		}
		pay := target.Price - currentPrice
		if pay < 1 {
			pay = 1
		}
		return Quote{PayAmount: pay, OrderType: OrderTypeUpgrade}
	}
}
