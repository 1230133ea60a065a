package process

import (
	"git.gammaspectra.live/P2Pool/gupax/types"
	"git.gammaspectra.live/P2Pool/gupax/utils"
	"regexp"
	"strconv"
	"strings"
)

// Log line patterns of the supervised binaries. These follow their current
// wording and are the only place to touch when upstream output changes.
const (
	// P2PoolSynchronized is printed once the sidechain is in sync.
	P2PoolSynchronized = "SYNCHRONIZED"
	// P2PoolGenesisTip precedes a spurious SYNCHRONIZED on an empty sidechain.
	P2PoolGenesisTip = "next height = 1,"
	// XmrigNewJob means the miner got work from a pool.
	XmrigNewJob = "new job"
	// XmrigNoActivePools means the miner lost all of its pools.
	XmrigNoActivePools = "no active pools"
)

// UnknownDate is used for payouts whose line carries no timestamp.
const UnknownDate = "????-??-?? ??:??:??.????"

var (
	payoutRegex      = regexp.MustCompile(`payout of ([0-9]+\.[0-9]+) XMR`)
	payoutDateRegex  = regexp.MustCompile(`[0-9]+-[0-9]+-[0-9]+ [0-9]+:[0-9]+:[0-9]+\.[0-9]+`)
	payoutBlockRegex = regexp.MustCompile(`block ([0-9]+)`)
)

// Payout is one "You received a payout of ..." announcement.
type Payout struct {
	Date   string
	Amount types.AtomicUnits
	Block  uint64
}

// PayoutSink receives payouts as soon as the reader sees them.
type PayoutSink interface {
	Append(date string, amount types.AtomicUnits, block uint64) error
}

func IsPayoutLine(line string) bool {
	return payoutRegex.MatchString(line)
}

// ParsePayout extracts date, amount and block from a payout line.
// ok is false when the line is not a payout or its amount does not parse.
func ParsePayout(line string) (p Payout, ok bool) {
	m := payoutRegex.FindStringSubmatch(line)
	if m == nil {
		return p, false
	}
	amount, err := types.AtomicUnitsFromString(m[1])
	if err != nil {
		utils.Errorf("[P2Pool] could not parse payout amount in %q: %s", utils.LogSafe(line), err)
		return p, false
	}
	p.Amount = amount

	if date := payoutDateRegex.FindString(line); date != "" {
		p.Date = date
	} else {
		p.Date = UnknownDate
	}

	if b := payoutBlockRegex.FindStringSubmatch(line); b != nil {
		if p.Block, err = strconv.ParseUint(b[1], 10, 64); err != nil {
			utils.Errorf("[P2Pool] could not parse payout block in %q: %s", utils.LogSafe(line), err)
		}
	}
	return p, true
}

// ScanPayouts returns every payout found in a multi-line buffer.
func ScanPayouts(buffer string) (payouts []Payout) {
	for _, line := range strings.Split(buffer, "\n") {
		if p, ok := ParsePayout(line); ok {
			payouts = append(payouts, p)
		}
	}
	return payouts
}

// SyncDetector watches consecutive parse buffers of a syncing daemon. A genesis
// tip line anywhere in a buffer means one SYNCHRONIZED belongs to the empty
// sidechain and is not counted, also when it is printed in a later buffer.
type SyncDetector struct {
	spurious int
}

// Scan reports whether buffer shows the daemon reached sync.
func (d *SyncDetector) Scan(buffer string) bool {
	if strings.Contains(buffer, P2PoolGenesisTip) {
		d.spurious = 1
	}
	n := strings.Count(buffer, P2PoolSynchronized)
	if n > d.spurious {
		d.spurious = 0
		return true
	}
	d.spurious -= n
	return false
}

// XmrigMiningState returns the state implied by the last relevant line of buffer,
// ok is false when neither a job nor a pool loss was seen.
func XmrigMiningState(buffer string) (state State, ok bool) {
	job := strings.LastIndex(buffer, XmrigNewJob)
	lost := strings.LastIndex(buffer, XmrigNoActivePools)
	switch {
	case job == -1 && lost == -1:
		return NotMining, false
	case job > lost:
		return Alive, true
	default:
		return NotMining, true
	}
}
