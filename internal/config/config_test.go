package config

import (
	"math"
	"testing"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v, want nil", err)
	}
}

func TestValidateRejectsNonPositiveGridDims(t *testing.T) {
	cfg := Default()
	cfg.Grid.Width = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero grid width")
	}
}

func TestValidateRejectsNonPositiveCellSize(t *testing.T) {
	cfg := Default()
	cfg.Grid.CellSize = -1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for negative cell size")
	}
}

func TestValidateRejectsNonFiniteOrigin(t *testing.T) {
	cfg := Default()
	cfg.Grid.OriginX = math.NaN()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for NaN origin")
	}
	cfg = Default()
	cfg.Grid.OriginZ = math.Inf(1)
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for +Inf origin")
	}
}

func TestValidateRejectsZeroPoolSize(t *testing.T) {
	cfg := Default()
	cfg.PoolSize = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero pool size")
	}
}

func TestProfileString(t *testing.T) {
	if ProfileNatural.String() != "natural" {
		t.Fatalf("ProfileNatural.String() = %q", ProfileNatural.String())
	}
	if ProfileLegacy.String() != "legacy" {
		t.Fatalf("ProfileLegacy.String() = %q", ProfileLegacy.String())
	}
}
