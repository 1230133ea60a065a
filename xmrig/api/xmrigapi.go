package api

import (
	"context"
	"fmt"
	"git.gammaspectra.live/P2Pool/gupax/utils"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"
)

// Timeout bounds every summary request.
const Timeout = time.Millisecond * 500

// responses above this are not a summary
const maxSummarySize = 1024 * 1024

// Summary is the part of GET /1/summary the dashboard shows.
type Summary struct {
	WorkerId   string     `json:"worker_id"`
	Resources  Resources  `json:"resources"`
	Connection Connection `json:"connection"`
	Hashrate   Hashrate   `json:"hashrate"`
}

type Resources struct {
	LoadAverage [3]*float64 `json:"load_average"`
}

type Connection struct {
	Diff     uint64 `json:"diff"`
	Accepted uint64 `json:"accepted"`
	Rejected uint64 `json:"rejected"`
}

type Hashrate struct {
	// Total holds the 10s, 60s and 15m windows, each may be null.
	Total [3]*float64 `json:"total"`
}

// XmrigApi polls the HTTP API of a running xmrig.
type XmrigApi struct {
	Url    string
	Client *http.Client
}

func NewXmrigApi(host string, port int) *XmrigApi {
	return &XmrigApi{
		Url: "http://" + net.JoinHostPort(host, strconv.Itoa(port)) + "/1/summary",
		Client: &http.Client{
			Timeout: Timeout,
		},
	}
}

func (x *XmrigApi) Summary(ctx context.Context) (*Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, x.Url, nil)
	if err != nil {
		return nil, err
	}

	if response, err := x.Client.Do(request); err != nil {
		return nil, err
	} else {
		defer response.Body.Close()
		if response.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("unexpected status %s", response.Status)
		}

		if buf, err := io.ReadAll(io.LimitReader(response.Body, maxSummarySize)); err != nil {
			return nil, err
		} else {
			result := &Summary{}
			if err = utils.UnmarshalJSON(buf, result); err != nil {
				return nil, fmt.Errorf("could not parse summary %q: %w", utils.LogSafe(string(buf)), err)
			}
			return result, nil
		}
	}
}
