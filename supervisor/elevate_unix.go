//go:build !windows

package supervisor

import (
	"context"
	"fmt"
	"golang.org/x/sys/unix"
	"os/exec"
)

func IsElevated() bool {
	return unix.Geteuid() == 0
}

// launchCommand wraps xmrig in sudo when it would otherwise run unprivileged and a
// passphrase is at hand.
func launchCommand(path string, argv []string, havePass, elevated bool) command {
	switch {
	case elevated:
		return command{Path: path, Args: argv, Elevated: true}
	case !havePass:
		return command{Path: path, Args: argv}
	default:
		return command{
			Path:     "sudo",
			Args:     append([]string{"-S", "--", path}, argv...),
			Sudo:     true,
			Elevated: true,
		}
	}
}

// VerifyPassphrase checks pass with sudo without running anything, cached credentials are
// ignored. It takes ownership of pass.
func VerifyPassphrase(ctx context.Context, pass []byte) error {
	defer clear(pass)

	cmd := exec.CommandContext(ctx, "sudo", "-S", "-k", "-p", "", "-v")
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return err
	}
	if err = cmd.Start(); err != nil {
		return err
	}
	if err = writeSecret(stdin, pass); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return err
	}
	if err = cmd.Wait(); err != nil {
		return fmt.Errorf("sudo rejected the passphrase: %w", err)
	}
	return nil
}
