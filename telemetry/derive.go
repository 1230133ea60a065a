package telemetry

import (
	"git.gammaspectra.live/P2Pool/gupax/types"
	"git.gammaspectra.live/P2Pool/gupax/utils"
	"math"
	"strings"
	"time"
)

const (
	// MoneroBlockTime is the mainchain target block time in seconds.
	MoneroBlockTime = 120
	// SidechainBlockTime is the p2pool main sidechain target block time in seconds.
	SidechainBlockTime = 10
	// SidechainMiniBlockTime is the p2pool mini sidechain target block time in seconds.
	SidechainMiniBlockTime = 10
	// TickBarWidth is the number of cells of TickBar, one per daemon tick.
	TickBarWidth = 60
)

var maxSeconds = uint64(math.MaxInt64 / int64(time.Second))

// ShareOrBlockTime is the expected time to find a share or block of the given difficulty
// at hashrate. Zero hashrate yields utils.UnknownTime.
func ShareOrBlockTime(hashrate uint64, difficulty types.Difficulty) utils.HumanTime {
	if hashrate == 0 {
		return utils.UnknownTime
	}
	seconds := min(difficulty.Div64(hashrate).Lo64(), maxSeconds)
	return utils.NewHumanTime(time.Duration(seconds) * time.Second)
}

// Dominance is subject as a percentage of total, ok is false when total is zero.
func Dominance(subject, total float64) (percent float64, ok bool) {
	if total == 0 {
		return 0, false
	}
	return subject / total * 100, true
}

func DominancePercent(subject, total uint64) utils.HumanNumber {
	if percent, ok := Dominance(float64(subject), float64(total)); ok {
		return utils.HumanNumberPercent(percent)
	}
	return utils.UnknownNumber
}

// TickBar renders the daemon tick counter as "[|||.......]", 60 cells wide.
func TickBar(tick uint8) string {
	filled := min(int(tick), TickBarWidth)
	return "[" + strings.Repeat("|", filled) + strings.Repeat(".", TickBarWidth-filled) + "]"
}

// SidechainBlockTimeFor returns the sidechain target block time in seconds.
func SidechainBlockTimeFor(mini bool) uint64 {
	if mini {
		return SidechainMiniBlockTime
	}
	return SidechainBlockTime
}
