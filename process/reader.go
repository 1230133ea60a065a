package process

import (
	"bufio"
	"errors"
	"git.gammaspectra.live/P2Pool/gupax/utils"
	"io"
	"os"
	"strings"
	"syscall"
	"time"
)

// colored lines are only expected before the no-color flag takes effect
const ansiLines = 20

const maxLineSize = 1024 * 1024

// Reader copies a child's combined output into its Process record.
type Reader struct {
	Process *Process
	// Payouts receives payout lines, nil when the child never prints them.
	Payouts PayoutSink
	// Gate drops every line that arrives within this long after Run starts.
	Gate time.Duration
}

// Run blocks until r returns EOF or an error.
func (r *Reader) Run(reader io.Reader) {
	log := utils.Logger(r.Process.Name().String())
	start := time.Now()

	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var n int
	for scanner.Scan() {
		line := strings.ToValidUTF8(scanner.Text(), "�")
		line = strings.TrimRight(line, "\r")
		if n < ansiLines {
			line = StripAnsi(line)
		}
		n++

		if r.Gate > 0 && time.Since(start) < r.Gate {
			continue
		}

		r.Process.AppendOutput(line)

		if r.Payouts != nil {
			if p, ok := ParsePayout(line); ok {
				if err := r.Payouts.Append(p.Date, p.Amount, p.Block); err != nil {
					log.Errorf("could not record payout of %s XMR in block %d: %s", p.Amount, p.Block, err)
				} else {
					log.Logf("payout of %s XMR in block %d", p.Amount, p.Block)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		if isClosedTerminal(err) {
			log.Debugf("output closed after %d lines", n)
		} else {
			log.Errorf("output read error after %d lines: %s", n, err)
		}
		return
	}
	log.Debugf("output reached EOF after %d lines", n)
}

// isClosedTerminal matches the errors a pseudo-terminal returns once the child is gone.
func isClosedTerminal(err error) bool {
	return errors.Is(err, syscall.EIO) || errors.Is(err, os.ErrClosed)
}
