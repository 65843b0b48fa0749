// Package core provides the domain types shared by the loader, the
// aggregator and the query layer.
//
// This file contains the parser for the numeric counter cells of input rows.
package core

import (
	"math"
	"strconv"
	"strings"
)

// CountKind classifies how a counter cell was read.
type CountKind int

const (
	// CountExact is a non-negative integral value.
	CountExact CountKind = iota
	// CountMissing is an empty cell or a null marker; it counts as zero.
	CountMissing
	// CountRounded is a finite fractional value rounded to the nearest integer.
	CountRounded
	// CountInvalid is anything else (text, negative or non-finite numbers,
	// values out of range); it counts as zero.
	CountInvalid
)

// nullTokens are the markers spreadsheet and dataframe exports write for
// absent values.
var nullTokens = map[string]struct{}{
	"#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {},
	"N/A": {}, "NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {},
	"nan": {}, "null": {},
}

// ParseCount converts a counter cell to a non-negative integer. It never
// fails: cells that carry no usable count read as zero and the kind tells
// the caller why.
//
// Examples:
//
//	ParseCount("12")   -> 12, CountExact
//	ParseCount("3.0")  -> 3, CountExact
//	ParseCount("")     -> 0, CountMissing
//	ParseCount("NA")   -> 0, CountMissing
//	ParseCount("3.5")  -> 4, CountRounded
//	ParseCount("-1")   -> 0, CountInvalid
func ParseCount(s string) (int64, CountKind) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, CountMissing
	}
	if _, ok := nullTokens[s]; ok {
		return 0, CountMissing
	}

	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		if v < 0 {
			return 0, CountInvalid
		}
		return v, CountExact
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f >= math.MaxInt64 {
		return 0, CountInvalid
	}
	if f == math.Trunc(f) {
		return int64(f), CountExact
	}
	return int64(math.Round(f)), CountRounded
}
