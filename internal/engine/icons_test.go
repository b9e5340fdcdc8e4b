package engine

import (
	"testing"

	"asset-preview/internal/assets"

	"github.com/disintegration/imaging"
)

func TestGenericIcon(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		ft   assets.FileType
		size int
		want int
	}{
		{assets.TypeOBJ, 48, 48},
		{assets.TypeUSD, 0, DefaultIconSize},
		{"unknown", 16, 16},
	}
	for _, tt := range tests {
		path, err := f.engine.GenericIcon(tt.ft, tt.size)
		if err != nil {
			t.Fatalf("%s: %v", tt.ft, err)
		}
		img, err := imaging.Open(path)
		if err != nil {
			t.Fatal(err)
		}
		if b := img.Bounds(); b.Dx() != tt.want || b.Dy() != tt.want {
			t.Errorf("%s: %dx%d, want %d", tt.ft, b.Dx(), b.Dy(), tt.want)
		}
	}
	if f.host.Stats().Imports != 0 || f.host.Stats().Captures != 0 {
		t.Error("generic icon touched the host")
	}
}

func TestRenderIconColours(t *testing.T) {
	img := renderIcon(assets.TypeOBJ, 64)
	want := typeColors[assets.TypeOBJ]

	if got := img.NRGBAAt(32, 20); got != want {
		t.Errorf("tile colour = %v, want %v", got, want)
	}
	if got := img.NRGBAAt(0, 0); got != iconBackground {
		t.Errorf("corner = %v", got)
	}
	if got := img.NRGBAAt(32, 54); got.R != want.R/2 {
		t.Errorf("strip = %v", got)
	}

	other := renderIcon(assets.TypeOther, 64)
	if got := other.NRGBAAt(32, 20); got != otherColor {
		t.Errorf("other colour = %v", got)
	}
	if tiny := renderIcon(assets.TypeOBJ, 1); tiny.Bounds().Dx() != 1 {
		t.Error("1px icon")
	}
}
