package payout

import "github.com/shopspring/decimal"

// Shares divides amount into n shares rounded half-even to the cent. The
// first share absorbs the remainder so the shares always sum to amount.
func Shares(amount decimal.Decimal, n int) []decimal.Decimal {
	if n <= 0 {
		return nil
	}
	count := decimal.NewFromInt(int64(n))
	share := amount.Div(count).RoundBank(2)
	remainder := amount.Sub(share.Mul(count))

	out := make([]decimal.Decimal, n)
	for i := range out {
		out[i] = share
	}
	out[0] = share.Add(remainder)
	return out
}
