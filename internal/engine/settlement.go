package engine

import "github.com/shopspring/decimal"

// SettleBet applies one bet against the freeze value. A bet wins only when its
// target equals freeze exactly; the stake is then replaced by stake*freeze.
// A loss forfeits the stake, clamped so the balance never goes negative.
func SettleBet(balance decimal.Decimal, bet Bet, freeze float64) (decimal.Decimal, bool) {
	if bet.TargetMultiplier == freeze {
		payout := bet.Stake.Mul(decimal.NewFromFloat(freeze))
		next := balance.Sub(bet.Stake).Add(payout)
		if next.IsNegative() {
			next = decimal.Zero
		}
		return next, true
	}

	next := balance.Sub(bet.Stake)
	if next.IsNegative() {
		return decimal.Zero, false
	}
	return next, false
}

// Settle mutates the balance of every participant holding a bet. Pending bets
// stay in place until the next reset so snapshots can still show them.
func Settle(l *Ledger, freeze float64) []Outcome {
	var outcomes []Outcome
	l.Each(func(p *Participant) {
		if p.PendingBet == nil {
			return
		}
		before := p.Balance
		after, won := SettleBet(before, *p.PendingBet, freeze)
		p.Balance = after
		outcomes = append(outcomes, Outcome{
			ParticipantID: p.ID,
			DisplayName:   p.DisplayName,
			Synthetic:     p.Synthetic,
			Bet:           *p.PendingBet,
			BalanceBefore: before,
			BalanceAfter:  after,
			Won:           won,
		})
	})
	return outcomes
}
