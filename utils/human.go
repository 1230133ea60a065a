package utils

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const Unknown = "???"

const (
	secondsPerYear  = 31_557_600
	secondsPerMonth = 2_630_016
	secondsPerDay   = 86_400
	secondsPerHour  = 3_600
)

// HumanTime is a duration printed as "1 hour, 2 minutes, 3 seconds".
// Negative values mean the duration is not known yet.
type HumanTime time.Duration

const UnknownTime = HumanTime(-1)

func NewHumanTime(d time.Duration) HumanTime {
	if d < 0 {
		return UnknownTime
	}
	return HumanTime(d)
}

func (t HumanTime) Known() bool {
	return t >= 0
}

func (t HumanTime) String() string {
	if !t.Known() {
		return Unknown
	}
	secs := uint64(time.Duration(t) / time.Second)
	if secs == 0 {
		return "0 seconds"
	}

	years := secs / secondsPerYear
	yearDays := secs % secondsPerYear
	months := yearDays / secondsPerMonth
	monthDays := yearDays % secondsPerMonth
	days := monthDays / secondsPerDay
	daySecs := monthDays % secondsPerDay
	hours := daySecs / secondsPerHour
	minutes := daySecs % secondsPerHour / 60
	seconds := daySecs % 60

	parts := make([]string, 0, 6)
	for _, p := range []struct {
		n    uint64
		unit string
	}{
		{years, "year"},
		{months, "month"},
		{days, "day"},
		{hours, "hour"},
		{minutes, "minute"},
		{seconds, "second"},
	} {
		if p.n == 0 {
			continue
		}
		if p.n == 1 {
			parts = append(parts, "1 "+p.unit)
		} else {
			parts = append(parts, strconv.FormatUint(p.n, 10)+" "+p.unit+"s")
		}
	}
	return strings.Join(parts, ", ")
}

func (t HumanTime) MarshalJSON() ([]byte, error) {
	return MarshalJSON(t.String())
}

// HumanNumber is a number already rendered for display.
type HumanNumber string

const UnknownNumber = HumanNumber(Unknown)

func HumanNumberFromUint(n uint64) HumanNumber {
	return HumanNumber(FormatThousands(n))
}

// HumanNumberFromFloat renders f with comma grouping on the integer part and the given decimals.
func HumanNumberFromFloat(f float64, decimals int) HumanNumber {
	s := strconv.FormatFloat(f, 'f', decimals, 64)
	integer, fraction, hasFraction := strings.Cut(s, ".")
	negative := strings.HasPrefix(integer, "-")
	integer = strings.TrimPrefix(integer, "-")
	n, err := strconv.ParseUint(integer, 10, 64)
	if err != nil {
		return HumanNumber(s)
	}
	result := FormatThousands(n)
	if negative {
		result = "-" + result
	}
	if hasFraction {
		result += "." + fraction
	}
	return HumanNumber(result)
}

// HumanNumberFromHashrate renders three optional hashrate windows, "[1,000 H/s, 2,000 H/s, ??? H/s]".
func HumanNumberFromHashrate(windows [3]*float64) HumanNumber {
	parts := make([]string, 0, len(windows))
	for _, w := range windows {
		if w == nil {
			parts = append(parts, Unknown+" H/s")
			continue
		}
		parts = append(parts, string(HumanNumberFromFloat(*w, 0))+" H/s")
	}
	return HumanNumber("[" + strings.Join(parts, ", ") + "]")
}

// HumanNumberFromLoad renders three optional CPU load averages, "[0.02, 0.11, ???]".
func HumanNumberFromLoad(load [3]*float64) HumanNumber {
	parts := make([]string, 0, len(load))
	for _, l := range load {
		if l == nil {
			parts = append(parts, Unknown)
			continue
		}
		parts = append(parts, fmt.Sprintf("%.2f", *l))
	}
	return HumanNumber("[" + strings.Join(parts, ", ") + "]")
}

func HumanNumberPercent(f float64) HumanNumber {
	if f < 0.01 {
		return "0%"
	}
	return HumanNumber(fmt.Sprintf("%.2f%%", f))
}

func (n HumanNumber) String() string {
	return string(n)
}
