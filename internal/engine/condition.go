package engine

import "strconv"

// evalCondition tests a sample value against an alert condition.
//
// Both sides are parsed as float64. A non-numeric value or threshold
// returns (false, false): the sample does not breach and ok signals the
// caller to log the leniency. A garbage sample must never activate an
// alert.
func evalCondition(value, op, threshold string) (breach, ok bool) {
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return false, false
	}
	th, err := strconv.ParseFloat(threshold, 64)
	if err != nil {
		return false, false
	}
	return compareFloat(v, op, th), true
}

// compareFloat applies a comparison operator to two float64 values.
// Unknown operators never match; creation-time validation rejects them.
func compareFloat(v float64, op string, th float64) bool {
	switch op {
	case ">":
		return v > th
	case ">=":
		return v >= th
	case "<":
		return v < th
	case "<=":
		return v <= th
	case "==":
		return v == th
	case "!=":
		return v != th
	default:
		return false
	}
}
