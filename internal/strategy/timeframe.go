package strategy

import (
	"smc-signal-engine/internal/analysis"
	"smc-signal-engine/internal/binance"
	"smc-signal-engine/internal/patterns"
)

// Tier is one of the three nested resolutions
type Tier string

const (
	TierStrategic Tier = "HTF"
	TierTactical  Tier = "MTF"
	TierExecution Tier = "LTF"
)

// Trend buckets the strategic price deviation from its SMA
type Trend string

const (
	TrendBullish     Trend = "BULLISH"
	TrendWeakBullish Trend = "WEAK_BULLISH"
	TrendNeutral     Trend = "NEUTRAL"
	TrendWeakBearish Trend = "WEAK_BEARISH"
	TrendBearish     Trend = "BEARISH"
)

// Confidence of the strategic trend
type Confidence string

const (
	ConfidenceNormal Confidence = "normal"
	ConfidenceHigh   Confidence = "high"
)

// Reasons a tier verdict is invalid
const (
	ReasonInsufficientData       = "INSUFFICIENT_DATA"
	ReasonNonMonotonicTimestamps = "NON_MONOTONIC_TIMESTAMPS"
)

const (
	minStrategicCandles = 20
	minTacticalCandles  = 20
	minExecutionCandles = 10

	smaPeriod = 20
	rsiPeriod = 14

	strongTrendPercent = 2.0
	weakTrendPercent   = 0.5

	highPriorityFVGPercent = 0.5
	highPriorityOBStrength = 0.005
)

// POIKind is the structure a point of interest came from
type POIKind string

const (
	POIFairValueGap POIKind = "FVG"
	POIOrderBlock   POIKind = "ORDER_BLOCK"
	POILiquidity    POIKind = "LIQUIDITY"
)

// POI is a price zone of interest on the strategic tier
type POI struct {
	Kind     POIKind           `json:"kind"`
	Type     string            `json:"type"`
	Top      float64           `json:"top"`
	Bottom   float64           `json:"bottom"`
	Priority analysis.Priority `json:"priority"`
	Index    int               `json:"index"`
}

// Contains reports whether price lies inside the zone, edges included
func (p POI) Contains(price float64) bool {
	return price >= p.Bottom && price <= p.Top
}

// MultiTimeframeData is the candle input of one symbol evaluation
type MultiTimeframeData struct {
	Symbol         string          `json:"symbol"`
	Strategic      []binance.Kline `json:"strategic"`
	Tactical       []binance.Kline `json:"tactical"`
	Execution      []binance.Kline `json:"execution"`
	QuoteVolume24h float64         `json:"quote_volume_24h"`
}

// TimeframeVerdict is the analysis of a single tier. Fields that do not
// apply to a tier are left zero.
type TimeframeVerdict struct {
	Tier         Tier               `json:"tier"`
	Valid        bool               `json:"valid"`
	Reason       string             `json:"reason,omitempty"`
	Direction    analysis.Direction `json:"direction"`
	CurrentPrice float64            `json:"current_price"`

	// Strategic
	Trend            Trend      `json:"trend,omitempty"`
	Confidence       Confidence `json:"confidence,omitempty"`
	SMA              float64    `json:"sma,omitempty"`
	RSI              float64    `json:"rsi,omitempty"`
	DeviationPercent float64    `json:"deviation_percent,omitempty"`
	POIs             []POI      `json:"pois,omitempty"`

	// Tactical and execution
	Aligned     bool                      `json:"aligned"`
	InZone      bool                      `json:"in_zone"`
	ChoCH       *analysis.StructuralBreak `json:"choch,omitempty"`
	BOS         *analysis.StructuralBreak `json:"bos,omitempty"`
	InternalBOS *analysis.StructuralBreak `json:"internal_bos,omitempty"`
	StrongClose bool                      `json:"strong_close"`

	// Execution
	Sweep *analysis.SweepResult `json:"sweep,omitempty"`
	HiLo  *patterns.HiLoResult  `json:"hilo,omitempty"`

	FVGs        []analysis.FVG          `json:"fvgs,omitempty"`
	OrderBlocks []analysis.OrderBlock   `json:"order_blocks,omitempty"`
	Pools       analysis.LiquidityPools `json:"pools"`
	Highs       []analysis.SwingPoint   `json:"-"`
	Lows        []analysis.SwingPoint   `json:"-"`
}

// Analyzer computes tier verdicts. It holds only thresholds and is safe for
// concurrent use.
type Analyzer struct {
	swingLookback  int
	equalTolerance float64
	fvg            *analysis.FVGDetector
	sweep          *analysis.SweepDetector
	hilo           *patterns.HiLoCounter
}

// NewAnalyzer creates a tier analyzer
func NewAnalyzer(swingLookback int, equalTolerance, minFVGPercent float64) *Analyzer {
	if swingLookback <= 0 {
		swingLookback = 3
	}
	if equalTolerance <= 0 {
		equalTolerance = 0.1
	}
	return &Analyzer{
		swingLookback:  swingLookback,
		equalTolerance: equalTolerance,
		fvg:            analysis.NewFVGDetector(minFVGPercent),
		sweep:          analysis.NewSweepDetector(analysis.DefaultSweepConfig()),
		hilo:           patterns.NewHiLoCounter(0, 0, 0),
	}
}

func checkInput(tier Tier, candles []binance.Kline, min int) (*TimeframeVerdict, bool) {
	v := &TimeframeVerdict{Tier: tier, Direction: analysis.DirectionNeutral}
	if len(candles) < min {
		v.Reason = ReasonInsufficientData
		return v, false
	}
	if !analysis.IsChronological(candles) {
		v.Reason = ReasonNonMonotonicTimestamps
		return v, false
	}
	v.Valid = true
	v.CurrentPrice = candles[len(candles)-1].Close
	return v, true
}

// pools builds swing and equal-level liquidity for a tier
func (a *Analyzer) pools(candles []binance.Kline, v *TimeframeVerdict) {
	v.Highs, v.Lows = analysis.FindSwingPoints(candles, a.swingLookback)
	eqHighs := analysis.FindEqualLevels(candles, analysis.EqualHighs, a.equalTolerance)
	eqLows := analysis.FindEqualLevels(candles, analysis.EqualLows, a.equalTolerance)
	v.Pools = analysis.BuildLiquidityPools(v.Highs, v.Lows, eqHighs, eqLows)
}

// AnalyzeStrategic derives the higher-timeframe trend and its points of interest
func (a *Analyzer) AnalyzeStrategic(candles []binance.Kline) *TimeframeVerdict {
	v, ok := checkInput(TierStrategic, candles, minStrategicCandles)
	if !ok {
		return v
	}

	v.SMA = analysis.CalculateSMA(candles, smaPeriod)
	v.RSI = analysis.CalculateRSI(candles, rsiPeriod)
	if v.SMA > 0 {
		v.DeviationPercent = (v.CurrentPrice - v.SMA) / v.SMA * 100
	}
	v.Trend = trendFor(v.DeviationPercent)

	switch v.Trend {
	case TrendBullish, TrendWeakBullish:
		v.Direction = analysis.DirectionLong
	case TrendBearish, TrendWeakBearish:
		v.Direction = analysis.DirectionShort
	}

	v.Confidence = ConfidenceNormal
	if (v.Direction == analysis.DirectionLong && v.RSI > 50) || (v.Direction == analysis.DirectionShort && v.RSI < 50) {
		v.Confidence = ConfidenceHigh
	}

	v.FVGs = a.fvg.DetectFVGs(candles)
	v.OrderBlocks = analysis.DetectOrderBlocks(candles)
	a.pools(candles, v)
	v.POIs = collectPOIs(v.FVGs, v.OrderBlocks, v.Pools)
	return v
}

func trendFor(deviation float64) Trend {
	switch {
	case deviation > strongTrendPercent:
		return TrendBullish
	case deviation > weakTrendPercent:
		return TrendWeakBullish
	case deviation < -strongTrendPercent:
		return TrendBearish
	case deviation < -weakTrendPercent:
		return TrendWeakBearish
	}
	return TrendNeutral
}

func collectPOIs(fvgs []analysis.FVG, obs []analysis.OrderBlock, pools analysis.LiquidityPools) []POI {
	pois := make([]POI, 0, len(fvgs)+len(obs))
	for _, f := range fvgs {
		p := analysis.PriorityMedium
		if f.SizePercent > highPriorityFVGPercent {
			p = analysis.PriorityHigh
		}
		pois = append(pois, POI{Kind: POIFairValueGap, Type: string(f.Type), Top: f.Top, Bottom: f.Bottom, Priority: p, Index: f.CandleIndex})
	}
	for _, ob := range obs {
		p := analysis.PriorityMedium
		if ob.Strength > highPriorityOBStrength {
			p = analysis.PriorityHigh
		}
		pois = append(pois, POI{Kind: POIOrderBlock, Type: string(ob.Type), Top: ob.High, Bottom: ob.Low, Priority: p, Index: ob.CandleIndex})
	}
	for _, lp := range pools.All() {
		pois = append(pois, POI{Kind: POILiquidity, Type: string(lp.Kind), Top: lp.Level, Bottom: lp.Level, Priority: lp.Priority, Index: lp.Index})
	}
	return pois
}

// inZonePOI returns the first strategic FVG or order block containing price
func inZonePOI(pois []POI, price float64) *POI {
	for i := range pois {
		if pois[i].Kind == POILiquidity {
			continue
		}
		if pois[i].Contains(price) {
			return &pois[i]
		}
	}
	return nil
}

// AnalyzeTactical reads mid-timeframe structure against the strategic verdict
func (a *Analyzer) AnalyzeTactical(candles []binance.Kline, htf *TimeframeVerdict) *TimeframeVerdict {
	v, ok := checkInput(TierTactical, candles, minTacticalCandles)
	if !ok {
		return v
	}

	a.pools(candles, v)
	v.ChoCH = analysis.DetectChoCH(v.Highs, v.Lows)
	v.BOS = analysis.DetectBOS(candles, v.Highs, v.Lows)
	switch {
	case v.ChoCH != nil:
		v.Direction = v.ChoCH.Kind.Direction()
	case v.BOS != nil:
		v.Direction = v.BOS.Kind.Direction()
	}

	v.Aligned = htf != nil && (v.Direction == htf.Direction || htf.Direction == analysis.DirectionNeutral)
	if htf != nil {
		v.InZone = inZonePOI(htf.POIs, v.CurrentPrice) != nil
	}

	v.StrongClose = a.strongClose(candles)
	v.FVGs = a.fvg.DetectFVGs(candles)
	return v
}

// strongClose checks a break of structure on the previous candle confirmed
// by the latest one
func (a *Analyzer) strongClose(candles []binance.Kline) bool {
	if len(candles) < 2 {
		return false
	}
	prev := candles[:len(candles)-1]
	highs, lows := analysis.FindSwingPoints(prev, a.swingLookback)
	brk := analysis.DetectBOS(prev, highs, lows)
	return analysis.ConfirmStrongClose(candles, brk)
}

// AnalyzeExecution reads entry structure, the liquidity sweep and the entry
// count against both higher tiers
func (a *Analyzer) AnalyzeExecution(candles []binance.Kline, htf, mtf *TimeframeVerdict) *TimeframeVerdict {
	v, ok := checkInput(TierExecution, candles, minExecutionCandles)
	if !ok {
		return v
	}

	a.pools(candles, v)
	v.ChoCH = analysis.DetectChoCH(v.Highs, v.Lows)
	v.InternalBOS = analysis.DetectInternalBOS(candles)
	switch {
	case v.ChoCH != nil:
		v.Direction = v.ChoCH.Kind.Direction()
	case v.InternalBOS != nil:
		v.Direction = v.InternalBOS.Kind.Direction()
	}

	bias := analysis.DirectionNeutral
	if htf != nil {
		bias = htf.Direction
	}
	v.Aligned = htf != nil && mtf != nil && v.Direction == htf.Direction && v.Direction == mtf.Direction

	if mtf != nil {
		if latest := analysis.LatestFVG(mtf.FVGs); latest != nil {
			v.InZone = latest.Contains(v.CurrentPrice)
		}
	}

	sweep := a.sweep.Detect(candles, bias, v.Pools)
	v.Sweep = &sweep
	hilo := a.hilo.Count(candles, bias)
	v.HiLo = &hilo
	return v
}
