package telemetry

import (
	"git.gammaspectra.live/P2Pool/gupax/p2pool/api"
	"git.gammaspectra.live/P2Pool/gupax/process"
	"git.gammaspectra.live/P2Pool/gupax/types"
	"git.gammaspectra.live/P2Pool/gupax/utils"
	"time"
)

// P2pool is the public telemetry of the daemon. The supervisor keeps one copy, the
// helper merges it into the copy the UI reads.
type P2pool struct {
	Output string          `json:"output"`
	Uptime utils.HumanTime `json:"uptime"`

	Payouts      uint64            `json:"payouts"`
	PayoutsHour  float64           `json:"payouts_hour"`
	PayoutsDay   float64           `json:"payouts_day"`
	PayoutsMonth float64           `json:"payouts_month"`
	XmrUnits     types.AtomicUnits `json:"xmr_atomic"`
	Xmr          float64           `json:"xmr"`
	XmrHour      float64           `json:"xmr_hour"`
	XmrDay       float64           `json:"xmr_day"`
	XmrMonth     float64           `json:"xmr_month"`

	Hashrate15m   utils.HumanNumber `json:"hashrate_15m"`
	Hashrate1h    utils.HumanNumber `json:"hashrate_1h"`
	Hashrate24h   utils.HumanNumber `json:"hashrate_24h"`
	SharesFound   utils.HumanNumber `json:"shares_found"`
	AverageEffort utils.HumanNumber `json:"average_effort"`
	CurrentEffort utils.HumanNumber `json:"current_effort"`
	Connections   utils.HumanNumber `json:"connections"`

	// raw values kept for arithmetic
	UserHashrate     uint64           `json:"user_hashrate"`
	P2poolHashrate   uint64           `json:"p2pool_hashrate_raw"`
	P2poolDifficulty types.Difficulty `json:"p2pool_difficulty_raw"`
	MoneroHashrate   types.Difficulty `json:"monero_hashrate_raw"`
	MoneroDifficulty types.Difficulty `json:"monero_difficulty_raw"`

	// Tick counts supervisor ticks up to the next network and pool read.
	Tick uint8 `json:"tick"`

	Network NetworkSummary `json:"network"`
}

// NetworkSummary is refreshed once a minute from the network and pool stats files.
type NetworkSummary struct {
	MoneroDifficulty utils.HumanNumber `json:"monero_difficulty"`
	MoneroHashrate   utils.HumanNumber `json:"monero_hashrate"`
	Height           utils.HumanNumber `json:"height"`
	Hash             string            `json:"hash"`
	Reward           string            `json:"reward"`
	P2poolDifficulty utils.HumanNumber `json:"p2pool_difficulty"`
	P2poolHashrate   utils.HumanNumber `json:"p2pool_hashrate"`
	Miners           utils.HumanNumber `json:"miners"`

	SoloBlockMean   utils.HumanTime `json:"solo_block_mean"`
	P2poolBlockMean utils.HumanTime `json:"p2pool_block_mean"`
	P2poolShareMean utils.HumanTime `json:"p2pool_share_mean"`

	P2poolPercent     utils.HumanNumber `json:"p2pool_percent"`
	UserP2poolPercent utils.HumanNumber `json:"user_p2pool_percent"`
	UserMoneroPercent utils.HumanNumber `json:"user_monero_percent"`
}

func NewP2pool() P2pool {
	return P2pool{
		Uptime:        utils.UnknownTime,
		Hashrate15m:   utils.UnknownNumber,
		Hashrate1h:    utils.UnknownNumber,
		Hashrate24h:   utils.UnknownNumber,
		SharesFound:   utils.UnknownNumber,
		AverageEffort: utils.UnknownNumber,
		CurrentEffort: utils.UnknownNumber,
		Connections:   utils.UnknownNumber,
		Network: NetworkSummary{
			MoneroDifficulty:  utils.UnknownNumber,
			MoneroHashrate:    utils.UnknownNumber,
			Height:            utils.UnknownNumber,
			Hash:              utils.Unknown,
			Reward:            utils.Unknown,
			P2poolDifficulty:  utils.UnknownNumber,
			P2poolHashrate:    utils.UnknownNumber,
			Miners:            utils.UnknownNumber,
			SoloBlockMean:     utils.UnknownTime,
			P2poolBlockMean:   utils.UnknownTime,
			P2poolShareMean:   utils.UnknownTime,
			P2poolPercent:     utils.UnknownNumber,
			UserP2poolPercent: utils.UnknownNumber,
			UserMoneroPercent: utils.UnknownNumber,
		},
	}
}

// Merge copies every field of from and appends output to the existing buffer.
func (p *P2pool) Merge(from *P2pool, output string) {
	buffer := p.Output
	*p = *from
	p.Output = buffer + output
}

// UpdateFromOutput counts the payouts in a parse buffer and refreshes the rates
// over elapsed, the time since the daemon started.
func (p *P2pool) UpdateFromOutput(parse string, elapsed time.Duration) {
	for _, payout := range process.ScanPayouts(parse) {
		p.Payouts++
		p.XmrUnits += payout.Amount
	}
	p.Xmr = p.XmrUnits.Float64()

	seconds := elapsed.Seconds()
	if seconds <= 0 {
		return
	}

	perSecond := float64(p.Payouts) / seconds
	p.PayoutsHour = (perSecond * 60) * 60
	p.PayoutsDay = p.PayoutsHour * 24
	p.PayoutsMonth = p.PayoutsDay * 30

	perSecond = p.Xmr / seconds
	p.XmrHour = (perSecond * 60) * 60
	p.XmrDay = p.XmrHour * 24
	p.XmrMonth = p.XmrDay * 30
}

func (p *P2pool) UpdateFromLocal(local *api.Local) {
	p.Hashrate15m = utils.HumanNumberFromUint(local.Hashrate15m)
	p.Hashrate1h = utils.HumanNumberFromUint(local.Hashrate1h)
	p.Hashrate24h = utils.HumanNumberFromUint(local.Hashrate24h)
	p.SharesFound = utils.HumanNumberFromUint(local.SharesFound)
	p.AverageEffort = utils.HumanNumberPercent(local.AverageEffort)
	p.CurrentEffort = utils.HumanNumberPercent(local.CurrentEffort)
	p.Connections = utils.HumanNumberFromUint(uint64(local.Connections))
	p.UserHashrate = local.Hashrate1h
}

// UpdateFromNetworkPool recomputes the mainchain and sidechain aggregates. Older p2pool
// releases do not write sidechainDifficulty, it is then estimated from the pool hashrate.
func (p *P2pool) UpdateFromNetworkPool(network *api.Network, pool *api.Pool, mini bool) {
	p.MoneroDifficulty = network.Difficulty
	p.MoneroHashrate = network.Difficulty.Div64(MoneroBlockTime)
	p.P2poolHashrate = pool.PoolStatistics.HashRate
	p.P2poolDifficulty = pool.PoolStatistics.SidechainDifficulty
	if p.P2poolDifficulty.IsZero() {
		p.P2poolDifficulty = types.DifficultyFrom64(p.P2poolHashrate).Mul64(SidechainBlockTimeFor(mini))
	}

	n := &p.Network
	n.MoneroDifficulty = humanDifficulty(p.MoneroDifficulty)
	n.MoneroHashrate = humanDifficulty(p.MoneroHashrate) + " H/s"
	n.Height = utils.HumanNumberFromUint(network.Height)
	n.Hash = network.Hash.String()
	n.Reward = types.AtomicUnits(network.Reward).String() + " XMR"
	n.P2poolDifficulty = humanDifficulty(p.P2poolDifficulty)
	n.P2poolHashrate = utils.HumanNumberFromUint(p.P2poolHashrate) + " H/s"
	n.Miners = utils.HumanNumberFromUint(uint64(pool.PoolStatistics.Miners))

	n.P2poolShareMean = ShareOrBlockTime(p.UserHashrate, p.P2poolDifficulty)
	n.SoloBlockMean = ShareOrBlockTime(p.UserHashrate, p.MoneroDifficulty)
	n.P2poolBlockMean = ShareOrBlockTime(p.P2poolHashrate, p.MoneroDifficulty)

	moneroHashrate := p.MoneroHashrate.Lo64()
	n.P2poolPercent = DominancePercent(p.P2poolHashrate, moneroHashrate)
	n.UserP2poolPercent = DominancePercent(p.UserHashrate, p.P2poolHashrate)
	n.UserMoneroPercent = DominancePercent(p.UserHashrate, moneroHashrate)
}

// TickBar renders the current tick counter.
func (p *P2pool) TickBar() string {
	return TickBar(p.Tick)
}

func humanDifficulty(d types.Difficulty) utils.HumanNumber {
	if d.Hi != 0 {
		return utils.HumanNumber(d.String())
	}
	return utils.HumanNumberFromUint(d.Lo)
}
