package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/ayusman/darpan/internal/broadcast"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSettings_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Settings().Get("no-such-key")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestSettings_SetAndGet(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	if err := repo.Set(KeyFramerate, "24"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := repo.Get(KeyFramerate)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "24" {
		t.Errorf("Get() = %q, want %q", got, "24")
	}
}

func TestSettings_SetOverwrites(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	if err := repo.Set(KeyQualityPercent, "30"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := repo.Set(KeyQualityPercent, "70"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := repo.Get(KeyQualityPercent)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != "70" {
		t.Errorf("Get() = %q, want %q", got, "70")
	}
}

func TestSettings_StreamDefaults(t *testing.T) {
	s := newTestStore(t)

	settings := s.Settings().StreamSettings()

	if settings.Framerate != DefaultFramerate {
		t.Errorf("Framerate = %d, want %d", settings.Framerate, DefaultFramerate)
	}
	if settings.ScalePercent != DefaultScalePercent {
		t.Errorf("ScalePercent = %d, want %d", settings.ScalePercent, DefaultScalePercent)
	}
	if settings.QualityPercent != DefaultQualityPercent {
		t.Errorf("QualityPercent = %d, want %d", settings.QualityPercent, DefaultQualityPercent)
	}
	if settings.FixOrientation {
		t.Error("FixOrientation should default to false")
	}
}

func TestSettings_StreamRoundTrip(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	want := broadcast.Settings{
		Framerate:      30,
		ScalePercent:   25,
		QualityPercent: 60,
		FixOrientation: true,
	}

	if err := repo.SetStreamSettings(want); err != nil {
		t.Fatalf("SetStreamSettings() error = %v", err)
	}

	got := repo.StreamSettings()
	if got != want {
		t.Errorf("StreamSettings() = %+v, want %+v", got, want)
	}
}

func TestSettings_MalformedValueFallsBack(t *testing.T) {
	s := newTestStore(t)
	repo := s.Settings()

	if err := repo.Set(KeyFramerate, "not-a-number"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := repo.Set(KeyFixOrientation, "maybe"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	settings := repo.StreamSettings()
	if settings.Framerate != DefaultFramerate {
		t.Errorf("Framerate = %d, want default %d", settings.Framerate, DefaultFramerate)
	}
	if settings.FixOrientation {
		t.Error("FixOrientation should fall back to false")
	}
}
