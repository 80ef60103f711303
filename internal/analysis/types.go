package analysis

// Direction is the trade bias derived from market structure
type Direction string

const (
	DirectionLong    Direction = "LONG"
	DirectionShort   Direction = "SHORT"
	DirectionNeutral Direction = "NEUTRAL"
)

// Opposite returns the other side; neutral stays neutral
func (d Direction) Opposite() Direction {
	switch d {
	case DirectionLong:
		return DirectionShort
	case DirectionShort:
		return DirectionLong
	default:
		return DirectionNeutral
	}
}

// Priority marks how much weight a level or zone carries
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
)

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

func bodyTop(open, close float64) float64 {
	if open > close {
		return open
	}
	return close
}

func bodyBottom(open, close float64) float64 {
	if open < close {
		return open
	}
	return close
}
