package ui

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/vvka-141/pgbulk/pkg/pgbulk"
)

func sampleSummary() Summary {
	return Summary{
		Table:      "public.products",
		Source:     "products.csv",
		OnConflict: pgbulk.DoUpdate,
		Condition:  "existing.version < incoming.version",
		Result: pgbulk.Result{
			Staged:   250,
			Affected: 120,
			Phase:    pgbulk.PhaseCommitted,
			Duration: 1234567 * time.Microsecond,
		},
	}
}

func TestSummary_RenderPlain(t *testing.T) {
	got := sampleSummary().Render(ModePlain)

	want := "✓ committed\n" +
		"  Table:       public.products\n" +
		"  Source:      products.csv\n" +
		"  On conflict: update\n" +
		"  When:        existing.version < incoming.version\n" +
		"  Staged:      250\n" +
		"  Affected:    120\n" +
		"  Phase:       committed\n" +
		"  Duration:    1.235s\n"
	assert.Equal(t, want, got)
}

func TestSummary_RenderPlainAborted(t *testing.T) {
	s := sampleSummary()
	s.Condition = ""
	s.Err = errors.New("boom")
	s.Result.Phase = pgbulk.PhaseAborted

	got := s.Render(ModePlain)
	assert.Contains(t, got, "✗ aborted")
	assert.Contains(t, got, "Phase:       aborted")
	assert.NotContains(t, got, "When:")
}

func TestSummary_RenderStyled(t *testing.T) {
	got := sampleSummary().Render(ModeStyled)
	assert.Contains(t, got, "pgbulk upsert")
	assert.Contains(t, got, "public.products")
	assert.Contains(t, got, "committed")
}

func TestDetectMode(t *testing.T) {
	t.Run("non-interactive override", func(t *testing.T) {
		t.Setenv("PGBULK_NON_INTERACTIVE", "1")
		assert.Equal(t, ModePlain, DetectMode(os.Stderr))
	})
	t.Run("CI", func(t *testing.T) {
		t.Setenv("PGBULK_NON_INTERACTIVE", "")
		t.Setenv("CI", "true")
		assert.Equal(t, ModePlain, DetectMode(os.Stderr))
	})
	t.Run("NO_COLOR", func(t *testing.T) {
		t.Setenv("CI", "")
		t.Setenv("NO_COLOR", "1")
		assert.Equal(t, ModePlain, DetectMode(os.Stderr))
	})
	t.Run("not a terminal", func(t *testing.T) {
		t.Setenv("PGBULK_NON_INTERACTIVE", "")
		t.Setenv("CI", "")
		t.Setenv("NO_COLOR", "")
		f, err := os.CreateTemp(t.TempDir(), "out")
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		assert.Equal(t, ModePlain, DetectMode(f))
	})
	t.Run("nil file", func(t *testing.T) {
		t.Setenv("CI", "")
		t.Setenv("NO_COLOR", "")
		assert.Equal(t, ModePlain, DetectMode(nil))
	})
}
