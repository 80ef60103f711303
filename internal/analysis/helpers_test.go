package analysis

import "smc-signal-engine/internal/binance"

// bar is open, high, low, close
type bar [4]float64

// series builds one-minute candles with strictly increasing open times
func series(bars ...bar) []binance.Kline {
	out := make([]binance.Kline, len(bars))
	for i, b := range bars {
		out[i] = binance.Kline{
			OpenTime:  int64(i) * 60000,
			Open:      b[0],
			High:      b[1],
			Low:       b[2],
			Close:     b[3],
			Volume:    100,
			CloseTime: int64(i)*60000 + 59999,
		}
	}
	return out
}

// flat returns n quiet candles around price
func flat(n int, price float64) []bar {
	out := make([]bar, n)
	for i := range out {
		out[i] = bar{price, price * 1.001, price * 0.999, price}
	}
	return out
}
