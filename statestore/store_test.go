package statestore

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

type testState struct {
	Lines []string
	Count int
}

func setupStore(dir string, value interface{}) *Store {
	return &Store{
		Filename: filepath.Join(dir, "state"),
		Target:   value,
	}
}

func TestSaveLoad(t *testing.T) {
	dir := t.TempDir()

	value := testState{Lines: []string{"gpio set PB2 1"}, Count: 1}
	store := setupStore(dir, &value)

	/* Save multiple times */
	for i := 0; i < 10; i++ {
		if store.Save() != nil {
			t.Error("Save failed")
		}
	}

	/* Load multiple times */
	for i := 0; i < 10; i++ {
		value = testState{}
		if store.Load() != nil {
			t.Error("Load failed")
		}
	}

	if value.Count != 1 || len(value.Lines) != 1 || value.Lines[0] != "gpio set PB2 1" {
		t.Error("Value was not saved and loaded", value)
	}

	if _, err := os.Stat(store.Filename + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temporary file left behind")
	}
}

func TestSaveLoadNoFilename(t *testing.T) {
	value := 0
	store := &Store{
		Target: &value,
	}

	if store.Save() != nil {
		t.Error("Save failed")
	}

	store.Touch()
	if saved, err := store.SaveConditional(); saved || err != nil {
		t.Error("Save conditional failed")
	}

	if store.Load() != ErrorNoFilename {
		t.Error("Load did not fail")
	}
}

func TestCorruption(t *testing.T) {
	dir := t.TempDir()

	value := testState{Count: 42}
	store := setupStore(dir, &value)
	if err := store.Save(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(store.Filename)
	if err != nil {
		t.Fatal(err)
	}

	/* Flip one bit in every position */
	for i := range data {
		corrupt := append([]byte(nil), data...)
		corrupt[i] ^= 0x10
		os.WriteFile(store.Filename, corrupt, 0600)

		if store.Load() != ErrorChecksum {
			t.Fatal("Corruption at byte", i, "not detected")
		}
	}

	os.WriteFile(store.Filename, nil, 0600)
	if store.Load() != ErrorChecksum {
		t.Error("Empty file accepted")
	}
}

func testSaveLoadConditional(touch bool, sleep time.Duration, saveInterval time.Duration) int {
	dir, err := os.MkdirTemp("", "test-")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(dir)

	value := 0
	store := setupStore(dir, &value)
	store.SaveInterval = saveInterval

	if store.Save() != nil {
		return -1
	}

	if touch {
		store.Update(func() { value = 1 })
	} else {
		value = 1
	}
	time.Sleep(sleep)

	if _, err := store.SaveConditional(); err != nil {
		return -1
	}

	if store.Load() != nil {
		return -1
	}

	return value
}

func TestSaveLoadConditional(t *testing.T) {
	/* Non time based */
	if testSaveLoadConditional(false, 0, 0) != 0 {
		t.Error("T1")
	}
	if testSaveLoadConditional(true, 0, 0) != 1 {
		t.Error("T2")
	}
	/* Time based */
	sleep := 10 * time.Millisecond
	longTime := 5 * sleep
	shortTime := sleep / 5

	if testSaveLoadConditional(true, sleep, shortTime) != 1 {
		t.Error("T3")
	}
	if testSaveLoadConditional(true, sleep, longTime) != 0 {
		t.Error("T4")
	}
}

func TestBadPathError(t *testing.T) {
	value := 0
	store := setupStore("./this/path/does/not/exist", &value)

	if store.Save() == nil {
		t.Error("Could save to non existing file")
	}

	delta := time.Until(store.nextSave)
	if delta < RetrySaveInterval/2 || delta > 3*RetrySaveInterval/2 {
		t.Error("Next interval not correct")
	}

	if store.Load() == nil {
		t.Error("Could load from bad file")
	}
}

func TestUnencodable(t *testing.T) {
	type noExportedFields struct {
		field int
	}

	value := noExportedFields{field: 1234}
	store := setupStore(t.TempDir(), &value)

	store.Touch()
	if store.Save() == nil {
		t.Error("Gob errors not passed through")
	}
	if !store.Modified() {
		t.Error("Failed save cleared the modified flag")
	}
}
