package telemetry

import (
	"git.gammaspectra.live/P2Pool/gupax/utils"
	"git.gammaspectra.live/P2Pool/gupax/xmrig/api"
)

// Xmrig is the public telemetry of the miner.
type Xmrig struct {
	Output string          `json:"output"`
	Uptime utils.HumanTime `json:"uptime"`

	WorkerId string            `json:"worker_id"`
	Load     utils.HumanNumber `json:"load"`
	Hashrate utils.HumanNumber `json:"hashrate"`
	// HashrateRaw is the 10s window, zero when xmrig has none yet.
	HashrateRaw float64           `json:"hashrate_raw"`
	Diff        utils.HumanNumber `json:"diff"`
	Accepted    utils.HumanNumber `json:"accepted"`
	Rejected    utils.HumanNumber `json:"rejected"`

	// Elevated is false when the miner runs without the privileges it wants.
	Elevated bool `json:"elevated"`
}

func NewXmrig() Xmrig {
	return Xmrig{
		Uptime:   utils.UnknownTime,
		WorkerId: utils.Unknown,
		Load:     utils.UnknownNumber,
		Hashrate: utils.UnknownNumber,
		Diff:     utils.UnknownNumber,
		Accepted: utils.UnknownNumber,
		Rejected: utils.UnknownNumber,
	}
}

// Merge copies every field of from and appends output to the existing buffer.
func (x *Xmrig) Merge(from *Xmrig, output string) {
	buffer := x.Output
	*x = *from
	x.Output = buffer + output
}

func (x *Xmrig) UpdateFromSummary(summary *api.Summary) {
	x.WorkerId = summary.WorkerId
	x.Load = utils.HumanNumberFromLoad(summary.Resources.LoadAverage)
	x.Hashrate = utils.HumanNumberFromHashrate(summary.Hashrate.Total)
	if h := summary.Hashrate.Total[0]; h != nil {
		x.HashrateRaw = *h
	} else {
		x.HashrateRaw = 0
	}
	x.Diff = utils.HumanNumberFromUint(summary.Connection.Diff)
	x.Accepted = utils.HumanNumberFromUint(summary.Connection.Accepted)
	x.Rejected = utils.HumanNumberFromUint(summary.Connection.Rejected)
}
