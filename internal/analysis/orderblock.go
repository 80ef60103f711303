package analysis

import "smc-signal-engine/internal/binance"

// OrderBlockType is the side an order block supports
type OrderBlockType string

const (
	BullishOrderBlock OrderBlockType = "BULLISH"
	BearishOrderBlock OrderBlockType = "BEARISH"
)

// OrderBlock is the impulse candle of a three-candle displacement
type OrderBlock struct {
	Type        OrderBlockType `json:"type"`
	High        float64        `json:"high"`
	Low         float64        `json:"low"`
	Strength    float64        `json:"strength"` // |close-open|/open of the impulse candle
	CandleIndex int            `json:"candle_index"`
	Timestamp   int64          `json:"timestamp"`
}

// DetectOrderBlocks scans every (k0, k1, k2) window. A bullish block is k1
// when k0 closed down, k1 closed up above k0's high and k2 closed up too.
// Bearish blocks mirror this.
func DetectOrderBlocks(candles []binance.Kline) []OrderBlock {
	var blocks []OrderBlock
	for i := 1; i+1 < len(candles); i++ {
		k0, k1, k2 := candles[i-1], candles[i], candles[i+1]

		var t OrderBlockType
		switch {
		case k0.Close < k0.Open && k1.Close > k1.Open && k1.Close > k0.High && k2.Close > k2.Open:
			t = BullishOrderBlock
		case k0.Close > k0.Open && k1.Close < k1.Open && k1.Close < k0.Low && k2.Close < k2.Open:
			t = BearishOrderBlock
		default:
			continue
		}

		blocks = append(blocks, OrderBlock{
			Type:        t,
			High:        k1.High,
			Low:         k1.Low,
			Strength:    abs(k1.Close-k1.Open) / k1.Open,
			CandleIndex: i,
			Timestamp:   k1.OpenTime,
		})
	}
	return blocks
}

// Contains checks if price is inside the block's range
func (ob OrderBlock) Contains(price float64) bool {
	return price >= ob.Low && price <= ob.High
}
