// Package strategytest holds candle fixtures that drive the signal engine
// down its main paths.
package strategytest

import (
	"time"

	"smc-signal-engine/internal/binance"
)

// Series builds candles from {open, high, low, close} rows spaced step apart
func Series(step time.Duration, rows [][4]float64) []binance.Kline {
	out := make([]binance.Kline, len(rows))
	for i, r := range rows {
		open := int64(i) * step.Milliseconds()
		out[i] = binance.Kline{
			OpenTime:  open,
			Open:      r[0],
			High:      r[1],
			Low:       r[2],
			Close:     r[3],
			Volume:    100,
			CloseTime: open + step.Milliseconds() - 1,
		}
	}
	return out
}

// BullishStrategic trends up for 25 candles, leaves a gap at 26 and pulls
// back into it.
func BullishStrategic() []binance.Kline {
	rows := make([][4]float64, 0, 30)
	for i := 0; i < 25; i++ {
		f := float64(i)
		rows = append(rows, [4]float64{99 + f, 100.5 + f, 98.5 + f, 100 + f})
	}
	rows = append(rows,
		[4]float64{124, 130.5, 123.5, 130},
		[4]float64{130, 132.5, 129.5, 132},
		[4]float64{132, 132.2, 128.8, 129},
		[4]float64{129, 129.6, 127.5, 128},
		[4]float64{128, 129, 127.8, 128.5},
	)
	return Series(4*time.Hour, rows)
}

// BearishStrategic falls steadily
func BearishStrategic() []binance.Kline {
	rows := make([][4]float64, 0, 30)
	for i := 0; i < 30; i++ {
		f := float64(i)
		rows = append(rows, [4]float64{201 - f, 201.5 - f, 199.5 - f, 200 - f})
	}
	return Series(4*time.Hour, rows)
}

// FlatSeries repeats one narrow candle n times
func FlatSeries(n int, step time.Duration) []binance.Kline {
	rows := make([][4]float64, n)
	for i := range rows {
		rows[i] = [4]float64{100, 100.3, 99.8, 100.1}
	}
	return Series(step, rows)
}

// BullishTactical makes a higher low at 13, rallies through a gap at 18 and
// settles back inside it.
func BullishTactical() []binance.Kline {
	return Series(time.Hour, [][4]float64{
		{126.0, 126.8, 125.7, 126.5}, {126.5, 128.2, 126.3, 128.0},
		{128, 129.6, 127.8, 129.2}, {129.2, 131.0, 129.0, 130.5}, {130.5, 132.6, 130.2, 131.4}, {131.4, 131.6, 129.3, 129.6},
		{129.6, 129.7, 127.4, 127.6}, {127.6, 127.9, 125.4, 125.7}, {125.7, 126.0, 123.5, 124.2}, {124.2, 125.8, 124.0, 125.5},
		{125.5, 127.0, 125.45, 126.8}, {126.8, 129.0, 126.5, 128.5}, {128.5, 128.7, 126.8, 127.0}, {127.0, 127.3, 125.3, 125.8},
		{125.8, 126.9, 125.6, 126.7}, {126.7, 127.8, 126.4, 127.6}, {127.6, 128.6, 127.3, 128.4}, {128.4, 130.5, 128.3, 130.2},
		{130.2, 132.3, 129.6, 131.2}, {131.2, 131.4, 130.3, 130.5}, {130.5, 130.7, 129.6, 129.8}, {129.8, 130.35, 129.0, 129.3},
		{129.3, 129.7, 128.9, 129.2}, {129.2, 129.7, 128.8, 129.4}, {129.4, 129.7, 129.0, 129.6}, {129.6, 129.75, 129.1, 129.2},
	})
}

// BullishExecution makes a higher low at 13, sweeps it at 17 and completes
// the count at 18.
func BullishExecution() []binance.Kline {
	return Series(15*time.Minute, [][4]float64{
		{129.8, 130.1, 129.6, 129.9}, {129.9, 130.3, 129.7, 130.2}, {130.2, 130.4, 129.9, 130.0}, {130.0, 130.6, 129.8, 130.4},
		{130.4, 130.45, 129.5, 129.6}, {129.6, 129.7, 128.9, 129.2}, {129.2, 129.8, 129.0, 129.7}, {129.7, 130.0, 129.4, 129.9},
		{129.9, 130.2, 129.6, 130.1}, {130.1, 130.5, 129.8, 130.0}, {130.0, 130.1, 129.5, 129.6}, {129.6, 129.8, 129.3, 129.4},
		{129.4, 129.6, 129.2, 129.3}, {129.3, 129.45, 129.1, 129.35}, {129.35, 129.9, 129.3, 129.85}, {129.85, 130.8, 129.8, 130.6},
		{130.6, 130.65, 129.35, 129.45}, {129.45, 129.5, 128.75, 129.4}, {129.4, 129.65, 129.2, 129.55}, {129.55, 129.6, 129.3, 129.5},
	})
}
