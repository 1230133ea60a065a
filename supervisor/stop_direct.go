//go:build !unix || linux

package supervisor

// stopElevated signals the sudo process, which passes it on to xmrig.
func stopElevated(c child, pass []byte) error {
	clear(pass)
	return terminate(c)
}
