package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"git.gammaspectra.live/P2Pool/gupax/config"
	"git.gammaspectra.live/P2Pool/gupax/ledger"
	"git.gammaspectra.live/P2Pool/gupax/supervisor"
	"git.gammaspectra.live/P2Pool/gupax/update"
	"git.gammaspectra.live/P2Pool/gupax/utils"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"
)

// version is replaced at link time with -ldflags "-X main.version=..."
var version = "v1.3.0"

type options struct {
	dir      string
	logLevel int
	debug    bool

	state   bool
	nodes   bool
	payouts bool

	noStartup    bool
	resetState   bool
	resetNodes   bool
	resetPools   bool
	resetPayouts bool
	resetAll     bool
}

func newRootCmd() *cobra.Command {
	o := &options{}
	cmd := &cobra.Command{
		Use:           "gupax",
		Short:         "Runs and watches P2Pool and XMRig",
		Long:          "Gupax supervises a P2Pool daemon and an XMRig miner, keeps a ledger of payouts and updates both binaries.\nWithout a dump or reset flag it runs until interrupted and serves a status API.",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&o.dir, "dir", "", "data directory, defaults to the per-user config directory")
	flags.IntVar(&o.logLevel, "log-level", 1, "log verbosity, 0 errors only up to 3 everything")
	flags.BoolVar(&o.debug, "debug", false, "log everything")

	flags.BoolVar(&o.state, "state", false, "print the state file")
	flags.BoolVar(&o.nodes, "nodes", false, "print the community and saved remote nodes")
	flags.BoolVar(&o.payouts, "payouts", false, "print the payout ledger")

	flags.BoolVar(&o.noStartup, "no-startup", false, "skip auto update and auto start")
	flags.BoolVar(&o.resetState, "reset-state", false, "reset the state file to defaults")
	flags.BoolVar(&o.resetNodes, "reset-nodes", false, "reset the saved node list to defaults")
	flags.BoolVar(&o.resetPools, "reset-pools", false, "reset the saved pool list to defaults")
	flags.BoolVar(&o.resetPayouts, "reset-payouts", false, "delete the payout ledger")
	flags.BoolVar(&o.resetAll, "reset-all", false, "all of the reset flags")
	return cmd
}

func (o *options) run(cmd *cobra.Command) (err error) {
	if o.debug {
		utils.GlobalLogLevel = utils.LogLevelError | utils.LogLevelInfo | utils.LogLevelNotice | utils.LogLevelDebug
	} else {
		utils.SetLogLevel(o.logLevel)
	}

	dir := o.dir
	if dir == "" {
		if dir, err = config.Dir(); err != nil {
			return fmt.Errorf("could not find data directory: %w", err)
		}
	}
	crashDir = dir

	if o.resetAll {
		o.resetState, o.resetNodes, o.resetPools, o.resetPayouts = true, true, true, true
	}
	out := cmd.OutOrStdout()
	if err = o.reset(out, dir); err != nil {
		return err
	}
	if err = o.dump(out, dir); err != nil {
		return err
	}
	if o.resetState || o.resetNodes || o.resetPools || o.resetPayouts || o.state || o.nodes || o.payouts {
		return nil
	}

	return o.headless(cmd.Context(), dir, cmd.InOrStdin(), cmd.ErrOrStderr())
}

func (o *options) reset(out io.Writer, dir string) error {
	if o.resetState {
		if err := config.Save(filepath.Join(dir, config.StateFile), config.Default()); err != nil {
			return fmt.Errorf("could not reset state: %w", err)
		}
		_, _ = fmt.Fprintln(out, "State reset")
	}
	if o.resetNodes {
		if err := config.SaveNodes(filepath.Join(dir, config.NodeFile), config.DefaultNodes()); err != nil {
			return fmt.Errorf("could not reset nodes: %w", err)
		}
		_, _ = fmt.Fprintln(out, "Node list reset")
	}
	if o.resetPools {
		if err := config.SavePools(filepath.Join(dir, config.PoolFile), config.DefaultPools()); err != nil {
			return fmt.Errorf("could not reset pools: %w", err)
		}
		_, _ = fmt.Fprintln(out, "Pool list reset")
	}
	if o.resetPayouts {
		if err := ledger.Reset(filepath.Join(dir, config.LedgerDir)); err != nil {
			return fmt.Errorf("could not reset payouts: %w", err)
		}
		_, _ = fmt.Fprintln(out, "Payouts reset")
	}
	return nil
}

func (o *options) dump(out io.Writer, dir string) error {
	if o.state {
		state, err := config.Load(filepath.Join(dir, config.StateFile))
		if err != nil {
			return err
		}
		buf, err := config.Marshal(state)
		if err != nil {
			return err
		}
		_, _ = out.Write(buf)
	}
	if o.nodes {
		saved, err := config.LoadNodes(filepath.Join(dir, config.NodeFile))
		if err != nil {
			return err
		}
		buf, err := yaml.Marshal(struct {
			Community []config.Node `yaml:"community"`
			Saved     []config.Node `yaml:"saved"`
		}{config.CommunityNodes, saved})
		if err != nil {
			return err
		}
		_, _ = out.Write(buf)
	}
	if o.payouts {
		l, err := ledger.Load(filepath.Join(dir, config.LedgerDir))
		if err != nil {
			return err
		}
		_, _ = io.WriteString(out, l.Views().Chronological)
		_, _ = fmt.Fprintf(out, "count: %d\ntotal: %s XMR\n", l.Count(), l.TotalAmount())
	}
	return nil
}

func (o *options) headless(ctx context.Context, dir string, stdin io.Reader, prompt io.Writer) error {
	state, err := config.Load(filepath.Join(dir, config.StateFile))
	if err != nil {
		return err
	}
	nodes, err := config.LoadNodes(filepath.Join(dir, config.NodeFile))
	if err != nil {
		return err
	}
	// an unreadable history is logged by Load, payouts are recorded from scratch
	l, _ := ledger.Load(filepath.Join(dir, config.LedgerDir))

	if exe, err := os.Executable(); err == nil {
		if err = update.CleanWorkDirs(filepath.Dir(exe)); err != nil {
			utils.Errorf("[Update] could not remove old update directories: %s", err)
		}
	}

	var pass []byte
	if !o.noStartup && state.Gupax.AutoXmrig {
		if pass, err = askPassphrase(ctx, stdin, prompt); err != nil {
			utils.Errorf("[Sudo] %s, XMRig starts without elevated privileges", err)
		}
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	return newApp(dir, state, nodes, l).run(ctx, !o.noStartup, pass)
}

// askPassphrase reads the sudo passphrase from the terminal and checks it. It returns nil
// where none is needed or none can be asked for.
func askPassphrase(ctx context.Context, stdin io.Reader, prompt io.Writer) ([]byte, error) {
	if runtime.GOOS == "windows" || supervisor.IsElevated() {
		return nil, nil
	}
	f, ok := stdin.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil, nil
	}

	_, _ = fmt.Fprint(prompt, "sudo passphrase for XMRig (empty to skip): ")
	pass, err := term.ReadPassword(int(f.Fd()))
	_, _ = fmt.Fprintln(prompt)
	if err != nil {
		clear(pass)
		return nil, err
	} else if len(pass) == 0 {
		return nil, nil
	}

	verifyCtx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()
	if err = supervisor.VerifyPassphrase(verifyCtx, bytes.Clone(pass)); err != nil {
		clear(pass)
		return nil, errors.New("incorrect sudo passphrase")
	}
	return pass, nil
}

func main() {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	start := time.Now()
	utils.SetPanicHandler(func(value any, stack []byte) {
		crash(start, value, stack)
	})
	defer utils.Recover()

	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %s\nRun 'gupax --help' for usage.\n", err)
		os.Exit(1)
	}
}
