package strategy

import "smc-signal-engine/internal/analysis"

// Gate reasons, in evaluation order
const (
	ReasonHTFDataInvalid      = "HTF_DATA_INVALID"
	ReasonMTFDataInvalid      = "MTF_DATA_INVALID"
	ReasonLTFDataInvalid      = "LTF_DATA_INVALID"
	ReasonHTFDirectionNeutral = "HTF_DIRECTION_NEUTRAL"
	ReasonMTFNotAligned       = "MTF_NOT_ALIGNED"
	ReasonMTFNotInPOI         = "MTF_NOT_IN_POI"
	ReasonLTFNotAligned       = "LTF_NOT_ALIGNED"
	ReasonLTFNotInEntryZone   = "LTF_NOT_IN_ENTRY_ZONE"
)

// GateResult is the alignment verdict across the three tiers.
// BlockReason carries the first failing check even when it does not block.
type GateResult struct {
	Passed      bool   `json:"passed"`
	Blocked     bool   `json:"blocked"`
	BlockReason string `json:"block_reason,omitempty"`
}

// EvaluateGate runs the alignment checks in a fixed order and stops at the
// first failure. Invalid data and a neutral strategic trend always block;
// the alignment and zone checks block only in strict mode, and a price
// outside the entry zone never blocks.
func EvaluateGate(htf, mtf, ltf *TimeframeVerdict, strict bool) GateResult {
	switch {
	case htf == nil || !htf.Valid:
		return GateResult{Blocked: true, BlockReason: ReasonHTFDataInvalid}
	case mtf == nil || !mtf.Valid:
		return GateResult{Blocked: true, BlockReason: ReasonMTFDataInvalid}
	case ltf == nil || !ltf.Valid:
		return GateResult{Blocked: true, BlockReason: ReasonLTFDataInvalid}
	case htf.Direction == analysis.DirectionNeutral:
		return GateResult{Blocked: true, BlockReason: ReasonHTFDirectionNeutral}
	case !mtf.Aligned:
		return GateResult{Blocked: strict, BlockReason: ReasonMTFNotAligned}
	case !mtf.InZone:
		return GateResult{Blocked: strict, BlockReason: ReasonMTFNotInPOI}
	case !ltf.Aligned:
		return GateResult{Blocked: strict, BlockReason: ReasonLTFNotAligned}
	case !ltf.InZone:
		return GateResult{BlockReason: ReasonLTFNotInEntryZone}
	}
	return GateResult{Passed: true}
}
