// Package statestore persists a value to a file using gob, protected by a
// CRC-8 trailer, and handles rate limited saves of modified state.
package statestore

import (
	"bytes"
	"encoding/gob"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/sigurn/crc8"
)

var crcTable = crc8.MakeTable(crc8.CRC8_MAXIM)

// Store saves and loads the value Target points to.
type Store struct {
	sync.Mutex
	modified bool

	// Filename is the file used for persistence. An empty name disables saving.
	Filename string
	// Target is a pointer to the value that is persisted
	Target interface{}
	// SaveInterval is the minimum interval between conditional saves.
	SaveInterval time.Duration

	buffer   bytes.Buffer
	nextSave time.Time
}

const (
	// RetrySaveInterval is the delay between save attempts if the previous one failed.
	RetrySaveInterval = 2 * time.Second
)

var (
	// ErrorNoFilename is returned when loading without a file name
	ErrorNoFilename = errors.New("Filename not specified")
	// ErrorChecksum is returned when the file is truncated or corrupted
	ErrorChecksum = errors.New("State file checksum mismatch")
)

// Load restores Target from the file.
func (s *Store) Load() error {
	s.Lock()
	defer s.Unlock()

	if s.Filename == "" {
		return ErrorNoFilename
	}

	data, err := os.ReadFile(s.Filename)
	if err != nil {
		return err
	}

	if len(data) < 1 {
		return ErrorChecksum
	}
	payload := data[:len(data)-1]
	if crc8.Checksum(payload, crcTable) != data[len(data)-1] {
		return ErrorChecksum
	}

	return gob.NewDecoder(bytes.NewReader(payload)).Decode(s.Target)
}

func (s *Store) save() error {
	if s.Filename == "" {
		return nil
	}

	tmpName := s.Filename + ".tmp"

	s.buffer.Reset()
	err := gob.NewEncoder(&s.buffer).Encode(s.Target)
	if err == nil {
		s.buffer.WriteByte(crc8.Checksum(s.buffer.Bytes(), crcTable))

		err = os.WriteFile(tmpName, s.buffer.Bytes(), 0600)
		if err == nil {
			err = os.Rename(tmpName, s.Filename)
		}
	}

	if err == nil {
		s.modified = false
		s.nextSave = time.Now().Add(s.SaveInterval)
	} else {
		s.nextSave = time.Now().Add(RetrySaveInterval)
	}

	return err
}

// Save writes Target to the file, regardless of modifications or the time of
// the previous save.
func (s *Store) Save() error {
	s.Lock()
	defer s.Unlock()

	return s.save()
}

// SaveConditional saves if Target was modified and SaveInterval has passed
// since the previous save. It reports whether a save was attempted.
func (s *Store) SaveConditional() (bool, error) {
	s.Lock()
	defer s.Unlock()

	if s.Filename == "" || !s.modified || time.Now().Before(s.nextSave) {
		return false, nil
	}

	return true, s.save()
}

// Update runs fn with the store locked, so it can safely change Target, and
// marks Target as modified.
func (s *Store) Update(fn func()) {
	s.Lock()
	defer s.Unlock()

	if fn != nil {
		fn()
	}
	s.modified = true
}

// Touch marks Target as modified.
func (s *Store) Touch() {
	s.Update(nil)
}

// Modified reports whether there are unsaved changes.
func (s *Store) Modified() bool {
	s.Lock()
	defer s.Unlock()

	return s.modified
}
