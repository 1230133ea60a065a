package update

import (
	"context"
	"errors"
	"fmt"
	"git.gammaspectra.live/P2Pool/gupax/config"
	"git.gammaspectra.live/P2Pool/gupax/utils"
	"github.com/sasha-s/go-deadlock"
	"io/fs"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"
)

const (
	MsgNone          = "No update in progress"
	MsgStart         = "Starting update"
	MsgTmp           = "Creating temporary directory"
	MsgTor           = "Creating Tor+HTTPS client"
	MsgHttps         = "Creating HTTPS client"
	MsgMetadata      = "Fetching package metadata"
	MsgMetadataRetry = "Fetching package metadata failed, attempt"
	MsgCompare       = "Compare package versions"
	MsgUpToDate      = "All packages already up-to-date"
	MsgDownload      = "Downloading packages"
	MsgDownloadRetry = "Downloading packages failed, attempt"
	MsgExtract       = "Extracting packages"
	MsgUpgrade       = "Upgrading packages"
	MsgSuccess       = "Update successful"
	MsgFailed        = "Update failed"
)

// WorkDirPrefix starts the name of every directory an update works in.
const WorkDirPrefix = "gupax_update_"

const attempts = 3

var ErrInProgress = errors.New("an update is already in progress")

type Status struct {
	Updating bool    `json:"updating"`
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
	// RestartRecommended is set once the running binary was replaced.
	RestartRecommended bool `json:"restart_recommended"`
}

// Failed reports whether Message carries the failure marker.
func (s Status) Failed() bool {
	return strings.HasPrefix(s.Message, MsgFailed)
}

// Progress is what the UI polls while an update runs.
type Progress struct {
	lock   deadlock.Mutex
	status Status
}

func NewProgress() *Progress {
	return &Progress{status: Status{Message: MsgNone}}
}

func (p *Progress) Status() Status {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.status
}

func (p *Progress) begin() bool {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.status.Updating {
		return false
	}
	p.status.Updating = true
	p.status.Progress = 0
	p.status.Message = MsgStart
	return true
}

func (p *Progress) end() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.status.Updating = false
}

func (p *Progress) message(message string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.status.Message = message
}

func (p *Progress) add(n float64) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.status.Progress = min(p.status.Progress+n, 100)
}

func (p *Progress) done(message string) {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.status.Progress = 100
	p.status.Message = message
}

func (p *Progress) restart() {
	p.lock.Lock()
	defer p.lock.Unlock()
	p.status.RestartRecommended = true
}

// Versions are the installed versions as far as this session knows.
type Versions struct {
	lock   deadlock.Mutex
	values [len(Packages)]string
}

// NewVersions starts from persisted versions, empty ones fall back to what is bundled.
func NewVersions(v config.Versions) *Versions {
	versions := &Versions{values: [len(Packages)]string{v.Gupax, v.P2pool, v.Xmrig}}
	if versions.values[P2pool] == "" {
		versions.values[P2pool] = BundledP2poolVersion
	}
	if versions.values[Xmrig] == "" {
		versions.values[Xmrig] = BundledXmrigVersion
	}
	return versions
}

func (v *Versions) Get(p Package) string {
	v.lock.Lock()
	defer v.lock.Unlock()
	return v.values[p]
}

func (v *Versions) Set(p Package, version string) {
	v.lock.Lock()
	defer v.lock.Unlock()
	v.values[p] = version
}

// Config returns the versions in their persisted form.
func (v *Versions) Config() config.Versions {
	v.lock.Lock()
	defer v.lock.Unlock()
	return config.Versions{
		Gupax:  v.values[Gupax],
		P2pool: v.values[P2pool],
		Xmrig:  v.values[Xmrig],
	}
}

type Options struct {
	GupaxPath  string
	P2poolPath string
	XmrigPath  string

	Tor      bool
	TorProxy string
}

func (o Options) path(p Package) string {
	switch p {
	case Gupax:
		return o.GupaxPath
	case P2pool:
		return o.P2poolPath
	default:
		return o.XmrigPath
	}
}

// Updater replaces the Gupax, P2Pool and XMRig binaries with their latest releases.
type Updater struct {
	Progress *Progress
	Versions *Versions
	// Current is the version compiled into this binary.
	Current string

	// Metadata and Prefix replace the upstream locations of a package when set.
	Metadata map[Package]string
	Prefix   map[Package]string

	newClient clientFactory
	log       utils.Logger
}

func New(current string, versions *Versions) *Updater {
	return &Updater{
		Progress:  NewProgress(),
		Versions:  versions,
		Current:   current,
		Metadata:  make(map[Package]string),
		Prefix:    make(map[Package]string),
		newClient: newClient,
		log:       utils.Logger("Update"),
	}
}

func (u *Updater) metadataUrl(p Package) string {
	if url, ok := u.Metadata[p]; ok {
		return url
	}
	return p.MetadataUrl()
}

func (u *Updater) downloadLink(p Package, tag string) string {
	prefix, ok := u.Prefix[p]
	if !ok {
		prefix = p.DownloadPrefix()
	}
	return p.DownloadLink(prefix, tag)
}

func (u *Updater) client(o Options) (*http.Client, error) {
	if o.Tor {
		u.Progress.message(MsgTor)
	} else {
		u.Progress.message(MsgHttps)
	}
	u.log.Logf("%s", u.Progress.Status().Message)
	return u.newClient(o.Tor, o.TorProxy)
}

type pkg struct {
	Package
	target  string
	old     string
	tag     string
	link    string
	archive []byte
}

// Run performs a whole update. Whatever happens is also reported through Progress, a
// failure leaves the packages replaced so far in place.
func (u *Updater) Run(ctx context.Context, o Options) (err error) {
	if !u.Progress.begin() {
		return ErrInProgress
	}
	defer u.Progress.end()
	defer func() {
		if err != nil {
			u.log.Errorf("update failed: %s", err)
			u.Progress.message(MsgFailed + ": " + err.Error())
		}
	}()

	start := time.Now()
	u.log.Logf("%s", MsgStart)

	pkgs := make([]*pkg, 0, len(Packages))
	for _, p := range Packages {
		path := o.path(p)
		if filepath.Base(path) != p.Binary() {
			return fmt.Errorf("refusing to replace %s, the %s binary must be named one of %s", path, p, allowedBinaries())
		}
		pkgs = append(pkgs, &pkg{Package: p, target: path})
	}

	u.Progress.message(MsgTmp)
	tmp := filepath.Join(filepath.Dir(o.GupaxPath), WorkDirPrefix+utils.RandomAlphanumeric(10))
	if err = os.Mkdir(tmp, 0o755); err != nil {
		return err
	}
	u.log.Logf("working in %s", tmp)
	if runtime.GOOS != "windows" {
		defer func() {
			if err := os.RemoveAll(tmp); err != nil {
				u.log.Errorf("could not remove %s: %s", tmp, err)
			}
		}()
	}

	userAgent := randomUserAgent()
	u.log.Debugf("using user agent %s", userAgent)
	u.Progress.add(5)

	client, err := u.client(o)
	if err != nil {
		return err
	}
	u.Progress.add(5)

	u.Progress.message(MsgMetadata)
	pending := pkgs
	for attempt := 1; attempt <= attempts && len(pending) > 0; attempt++ {
		if attempt > 1 {
			u.Progress.message(fmt.Sprintf("%s [%d/%d]", MsgMetadataRetry, attempt, attempts))
			if client, err = u.client(o); err != nil {
				return err
			}
		}
		errs := utils.Parallel(len(pending), func(i int) (err error) {
			pending[i].tag, err = fetchTag(ctx, client, u.metadataUrl(pending[i].Package), userAgent)
			return err
		})
		pending = u.retain(pending, errs, attempt, func(p *pkg) {
			u.log.Logf("%s %s ... OK", p, p.tag)
			u.Progress.add(10)
		})
		if err = ctx.Err(); err != nil {
			return err
		}
	}
	if len(pending) > 0 {
		return fmt.Errorf("could not fetch metadata of %s", names(pending))
	}

	u.Progress.message(MsgCompare)
	var changes strings.Builder
	var outdated []*pkg
	for _, p := range pkgs {
		p.old = u.Versions.Get(p.Package)
		if p.Package == Gupax {
			if p.tag == u.Current || p.tag == p.old {
				u.log.Logf("%s %s == %s ... SKIPPING", p, u.Current, p.tag)
				continue
			}
			p.old = u.Current
		} else if p.tag == p.old {
			u.log.Logf("%s %s == %s ... SKIPPING", p, p.old, p.tag)
			continue
		}
		u.log.Logf("%s %s != %s ... ADDING", p, p.old, p.tag)
		changes.WriteString(fmt.Sprintf("\n%s %s -> %s", p, p.old, p.tag))
		outdated = append(outdated, p)
	}
	u.Progress.add(5)
	if len(outdated) == 0 {
		u.Progress.done(MsgUpToDate)
		u.log.Logf("%s", MsgUpToDate)
		return nil
	}
	share := func(total float64) float64 {
		return math.Round(total / float64(len(outdated)))
	}

	u.Progress.message(MsgDownload + changes.String())
	pending = outdated
	for attempt := 1; attempt <= attempts && len(pending) > 0; attempt++ {
		if attempt > 1 {
			u.Progress.message(fmt.Sprintf("%s [%d/%d]%s", MsgDownloadRetry, attempt, attempts, changes.String()))
			if client, err = u.client(o); err != nil {
				return err
			}
		}
		errs := utils.Parallel(len(pending), func(i int) (err error) {
			p := pending[i]
			p.link = u.downloadLink(p.Package, p.tag)
			u.log.Logf("%s ... %s", p, p.link)
			p.archive, err = get(ctx, client, p.link, userAgent)
			return err
		})
		pending = u.retain(pending, errs, attempt, func(p *pkg) {
			u.log.Logf("%s ... OK, %s", p, utils.SiBytes(uint64(len(p.archive))))
			u.Progress.add(share(30))
		})
		if err = ctx.Err(); err != nil {
			return err
		}
	}
	if len(pending) > 0 {
		return fmt.Errorf("could not download %s", names(pending))
	}

	u.Progress.message(MsgExtract + changes.String())
	for _, p := range outdated {
		if err = extract(p.link, p.archive, filepath.Join(tmp, p.name())); err != nil {
			return fmt.Errorf("could not extract %s: %w", p, err)
		}
		p.archive = nil
		u.Progress.add(share(5))
	}

	u.Progress.message(MsgUpgrade + changes.String())
	for _, p := range outdated {
		found, err := findBinary(filepath.Join(tmp, p.name()), p.Binary())
		if err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
		if err = u.replace(tmp, found, p); err != nil {
			return fmt.Errorf("could not replace %s: %w", p.target, err)
		}
		u.Versions.Set(p.Package, p.tag)
		if p.Package == Gupax {
			u.Progress.restart()
		}
		u.Progress.add(share(5))
	}

	seconds := uint64(time.Since(start) / time.Second)
	u.log.Logf("%s in %d seconds", MsgSuccess, seconds)
	u.Progress.done(fmt.Sprintf("%s! Took %s.%s", MsgSuccess, utils.NewHumanTime(time.Duration(seconds)*time.Second), changes.String()))
	return nil
}

// retain logs the failures of an attempt and returns the packages to try again.
func (u *Updater) retain(pending []*pkg, errs []error, attempt int, ok func(p *pkg)) (failed []*pkg) {
	for i, p := range pending {
		if errs[i] != nil {
			u.log.Errorf("%s failed, attempt [%d/%d]: %s", p, attempt, attempts, errs[i])
			failed = append(failed, p)
			continue
		}
		ok(p)
	}
	return failed
}

// replace moves the new binary over p.target. A running Windows executable cannot be
// overwritten, it is moved into tmp first.
func (u *Updater) replace(tmp, binary string, p *pkg) error {
	if err := os.MkdirAll(filepath.Dir(p.target), 0o755); err != nil {
		return err
	}
	if runtime.GOOS == "windows" && p.Package == Gupax {
		old := filepath.Join(tmp, "gupax_old.exe")
		u.log.Logf("moving %s -> %s", p.target, old)
		if err := os.Rename(p.target, old); err != nil {
			return err
		}
	}
	u.log.Logf("moving %s -> %s", binary, p.target)
	return os.Rename(binary, p.target)
}

// findBinary looks for a regular file called name anywhere below dir.
func findBinary(dir, name string) (path string, err error) {
	err = filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && d.Name() == name {
			path = p
			return fs.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if path == "" {
		return "", fmt.Errorf("archive holds no %s", name)
	}
	return path, nil
}

// CleanWorkDirs removes what earlier updates left in dir.
func CleanWorkDirs(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var errs []error
	for _, e := range entries {
		if e.IsDir() && strings.HasPrefix(e.Name(), WorkDirPrefix) {
			errs = append(errs, os.RemoveAll(filepath.Join(dir, e.Name())))
		}
	}
	return errors.Join(errs...)
}

func allowedBinaries() string {
	allowed := make([]string, 0, len(Packages))
	for _, p := range Packages {
		allowed = append(allowed, p.Binary())
	}
	slices.Sort(allowed)
	return "[" + strings.Join(allowed, ", ") + "]"
}

func names(pkgs []*pkg) string {
	result := make([]string, 0, len(pkgs))
	for _, p := range pkgs {
		result = append(result, p.String())
	}
	return strings.Join(result, ", ")
}
