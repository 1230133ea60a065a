package supervisor

import (
	"errors"
	"github.com/sasha-s/go-deadlock"
	"io"
)

// SudoState holds at most one passphrase. Whatever it holds is wiped when replaced or dropped.
type SudoState struct {
	lock deadlock.Mutex
	pass []byte
}

// Set takes ownership of pass.
func (s *SudoState) Set(pass []byte) {
	s.lock.Lock()
	defer s.lock.Unlock()
	clear(s.pass)
	s.pass = pass
}

// Take moves the passphrase out, the caller wipes it.
func (s *SudoState) Take() []byte {
	s.lock.Lock()
	defer s.lock.Unlock()
	pass := s.pass
	s.pass = nil
	return pass
}

func (s *SudoState) Wipe() {
	s.lock.Lock()
	defer s.lock.Unlock()
	clear(s.pass)
	s.pass = nil
}

// command is what is actually spawned for xmrig.
type command struct {
	Path string
	Args []string
	// Sudo is set when Path is sudo and a passphrase must be written to it.
	Sudo bool
	// Elevated tells whether xmrig ends up with elevated privileges.
	Elevated bool
}

// writeSecret writes pass and a newline to w, then closes it.
func writeSecret(w io.WriteCloser, pass []byte) error {
	_, err := w.Write(pass)
	if err == nil {
		_, err = w.Write([]byte{'\n'})
	}
	return errors.Join(err, w.Close())
}
