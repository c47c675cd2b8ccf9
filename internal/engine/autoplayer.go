package engine

import "github.com/shopspring/decimal"

// PlaceAutoBets gives every synthetic participant a fresh bet: a target drawn
// from [0, maxTarget) and a whole-number stake drawn from [0, balance). Any
// existing bet is overwritten. It returns how many bets were placed.
func PlaceAutoBets(l *Ledger, rng RandomSource, maxTarget float64) int {
	placed := 0
	l.Each(func(p *Participant) {
		if !p.Synthetic {
			return
		}
		stake := int64(0)
		if whole := p.Balance.Floor().IntPart(); whole > 0 {
			stake = int64(rng.IntN(int(whole)))
		}
		p.PendingBet = &Bet{
			TargetMultiplier: rng.Float64() * maxTarget,
			Stake:            decimal.NewFromInt(stake),
			PlacedAt:         l.now(),
		}
		placed++
	})
	return placed
}
