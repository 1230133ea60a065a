//go:build unix && !linux

package supervisor

import (
	"os/exec"
	"strconv"
)

// stopElevated kills a child that runs under sudo by running kill through sudo,
// signals from this process do not cross the privilege boundary here.
func stopElevated(c child, pass []byte) error {
	defer clear(pass)
	if len(pass) == 0 {
		return terminate(c)
	}

	cmd := exec.Command("sudo", "-S", "-p", "", "--", "kill", strconv.Itoa(c.Pid()))
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
	return cmd.Wait()
}
