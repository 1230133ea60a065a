package ledger

import (
	"cmp"
	"errors"
	"fmt"
	"git.gammaspectra.live/P2Pool/gupax/types"
	"git.gammaspectra.live/P2Pool/gupax/utils"
	"github.com/sasha-s/go-deadlock"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
)

const (
	LogFile    = "payout_log"
	CountFile  = "payout"
	AmountFile = "xmr"
)

var logger = utils.Logger("Ledger")

var errMalformed = errors.New("malformed payout line")

// Entry is one payout.
type Entry struct {
	Date   string            `json:"date"`
	Amount types.AtomicUnits `json:"amount"`
	Block  uint64            `json:"block"`
}

// String renders the entry the way it is stored in the log file, without the newline.
func (e Entry) String() string {
	return e.Date + " | " + e.Amount.String() + " XMR | Block " + utils.FormatThousands(e.Block)
}

func parseEntry(line string) (e Entry, err error) {
	parts := strings.Split(line, " | ")
	if len(parts) != 3 {
		return e, fmt.Errorf("%w: %q", errMalformed, utils.LogSafe(line))
	}
	e.Date = parts[0]

	amount, ok := strings.CutSuffix(parts[1], " XMR")
	if !ok {
		return e, fmt.Errorf("%w: %q", errMalformed, utils.LogSafe(line))
	}
	if e.Amount, err = types.AtomicUnitsFromString(amount); err != nil {
		return e, fmt.Errorf("amount in %q: %w", utils.LogSafe(line), err)
	}

	block, ok := strings.CutPrefix(parts[2], "Block ")
	if !ok {
		return e, fmt.Errorf("%w: %q", errMalformed, utils.LogSafe(line))
	}
	if e.Block, err = utils.ParseThousands(block); err != nil {
		return e, fmt.Errorf("block in %q: %w", utils.LogSafe(line), err)
	}
	return e, nil
}

// Views are the entries rendered in four orders, one entry per line.
type Views struct {
	Chronological string `json:"chronological"`
	Reverse       string `json:"reverse"`
	ByAmountDesc  string `json:"by_amount_desc"`
	ByAmountAsc   string `json:"by_amount_asc"`
}

// Ledger is the list of payouts seen so far, mirrored into three files under its directory.
type Ledger struct {
	// persist serializes file writes, it is taken before lock
	persist deadlock.Mutex
	lock    deadlock.RWMutex

	dir     string
	entries []Entry
	total   types.AtomicUnits
	views   Views
}

func New(dir string) *Ledger {
	return &Ledger{
		dir: dir,
	}
}

// Load reads the ledger back from dir. Missing files give an empty ledger. Files that do not
// parse or do not agree with each other also give an empty ledger, and the returned error says why.
func Load(dir string) (*Ledger, error) {
	l := New(dir)
	entries, err := readEntries(dir)
	if err != nil {
		logger.Errorf("payout history in %s is unreadable and was not loaded: %s", dir, err)
		return l, err
	}
	l.entries = entries
	l.refresh()
	return l, nil
}

func readEntries(dir string) ([]Entry, error) {
	logBuf, err := os.ReadFile(filepath.Join(dir, LogFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	var entries []Entry
	var total types.AtomicUnits
	for _, line := range strings.Split(string(logBuf), "\n") {
		if line == "" {
			continue
		}
		e, err := parseEntry(line)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
		total += e.Amount
	}

	if count, err := readNumber(filepath.Join(dir, CountFile)); err != nil {
		return nil, err
	} else if count != uint64(len(entries)) {
		return nil, fmt.Errorf("%s holds %d payouts but %s says %d", LogFile, len(entries), CountFile, count)
	}
	if amount, err := readNumber(filepath.Join(dir, AmountFile)); err != nil {
		return nil, err
	} else if types.AtomicUnits(amount) != total {
		return nil, fmt.Errorf("%s adds up to %d but %s says %d", LogFile, total, AmountFile, amount)
	}
	return entries, nil
}

func readNumber(path string) (uint64, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(strings.TrimSpace(string(buf)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("could not parse %s: %w", path, err)
	}
	return n, nil
}

// Reset removes the three files from dir.
func Reset(dir string) error {
	var errs []error
	for _, name := range []string{LogFile, CountFile, AmountFile} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Append records a payout and rewrites the files. A write failure keeps the entry in
// memory, the next Append writes everything again.
func (l *Ledger) Append(date string, amount types.AtomicUnits, block uint64) error {
	l.persist.Lock()
	defer l.persist.Unlock()

	l.lock.Lock()
	l.entries = append(l.entries, Entry{Date: date, Amount: amount, Block: block})
	l.refresh()
	log, count, total := l.views.Chronological, len(l.entries), l.total
	l.lock.Unlock()

	if err := l.write(log, count, total); err != nil {
		logger.Errorf("could not write payout history to %s: %s", l.dir, err)
		return err
	}
	return nil
}

func (l *Ledger) write(log string, count int, total types.AtomicUnits) error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return err
	}
	if err := utils.WriteFileAtomic(filepath.Join(l.dir, LogFile), []byte(log), 0o644); err != nil {
		return err
	}
	if err := utils.WriteFileAtomic(filepath.Join(l.dir, CountFile), []byte(strconv.Itoa(count)), 0o644); err != nil {
		return err
	}
	return utils.WriteFileAtomic(filepath.Join(l.dir, AmountFile), []byte(strconv.FormatUint(uint64(total), 10)), 0o644)
}

// refresh recomputes the total and the views, the caller holds lock.
func (l *Ledger) refresh() {
	l.total = 0
	for _, e := range l.entries {
		l.total += e.Amount
	}

	l.views.Chronological = render(l.entries)

	reverse := slices.Clone(l.entries)
	slices.Reverse(reverse)
	l.views.Reverse = render(reverse)

	byAmount := slices.Clone(l.entries)
	slices.SortStableFunc(byAmount, func(a, b Entry) int {
		return cmp.Compare(b.Amount, a.Amount)
	})
	l.views.ByAmountDesc = render(byAmount)

	slices.SortStableFunc(byAmount, func(a, b Entry) int {
		return cmp.Compare(a.Amount, b.Amount)
	})
	l.views.ByAmountAsc = render(byAmount)
}

func render(entries []Entry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func (l *Ledger) Views() Views {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.views
}

func (l *Ledger) TotalAmount() types.AtomicUnits {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.total
}

func (l *Ledger) Count() uint64 {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return uint64(len(l.entries))
}

// Entries returns a copy of the payouts in the order they were seen.
func (l *Ledger) Entries() []Entry {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return slices.Clone(l.entries)
}

func (l *Ledger) Dir() string {
	return l.dir
}
