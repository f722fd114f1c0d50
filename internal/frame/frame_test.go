package frame

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"testing"
	"time"

	"gate-snake/internal/config"
	"gate-snake/internal/game"
)

func testSnapshot(t *testing.T) *game.Snapshot {
	t.Helper()
	w, err := game.NewWorld(game.DefaultSettings(), rand.New(rand.NewSource(7)),
		game.NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
	if err != nil {
		t.Fatalf("NewWorld: %v", err)
	}
	snap := w.Snapshot()
	return &snap
}

func rgbaAt(img image.Image, x, y int) color.RGBA {
	return color.RGBAModel.Convert(img.At(x, y)).(color.RGBA)
}

func TestEncodePNGSize(t *testing.T) {
	r := New(config.RenderConfig{CellSize: 10, ScoreboardWidth: 200})
	snap := testSnapshot(t)

	var buf bytes.Buffer
	if err := r.EncodePNG(&buf, snap); err != nil {
		t.Fatalf("EncodePNG: %v", err)
	}

	img, err := png.Decode(&buf)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b := img.Bounds()
	if b.Dx() != 50*10+200 || b.Dy() != 21*10 {
		t.Errorf("size = %dx%d, want 700x210", b.Dx(), b.Dy())
	}
}

func TestRenderCells(t *testing.T) {
	const cell = 16
	r := New(config.RenderConfig{CellSize: cell, ScoreboardWidth: 0})
	snap := testSnapshot(t)

	img, err := r.Render(snap)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	center := func(c game.Cell) (int, int) { return c.X*cell + cell/2, c.Y*cell + cell/2 }

	tests := []struct {
		name string
		cell game.Cell
		want color.RGBA
	}{
		{"immune corner", game.Cell{X: 0, Y: 0}, colorImmune},
		{"border wall", game.Cell{X: 1, Y: 0}, colorWall},
		{"head", snap.Head(), colorHead},
		{"body", snap.Snake[1], colorSnake},
		{"growth", snap.Growth, colorGrowth},
		{"poison", snap.Poison, colorPoison},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := center(tt.cell)
			if got := rgbaAt(img, x, y); got != tt.want {
				t.Errorf("pixel at %v = %v, want %v", tt.cell, got, tt.want)
			}
		})
	}
}

func TestRenderBanner(t *testing.T) {
	const cell = 16
	r := New(config.RenderConfig{CellSize: cell})
	snap := testSnapshot(t)

	plain, err := r.Render(snap)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	snap.Outcome = game.Outcome{Status: game.StatusGameOver, Reason: game.ReasonCollision, Cause: game.CauseWall}
	over, err := r.Render(snap)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}

	// The overlay band darkens the left edge of the board's middle row.
	x, y := cell/2, snap.Height*cell/2
	if rgbaAt(plain, x, y) == rgbaAt(over, x, y) {
		t.Error("game over overlay not drawn")
	}
}

func TestRenderNoSnapshot(t *testing.T) {
	r := New(config.DefaultRender())
	if _, err := r.Render(nil); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("Render(nil) error = %v, want ErrNoSnapshot", err)
	}
	if err := r.EncodePNG(&bytes.Buffer{}, &game.Snapshot{}); !errors.Is(err, ErrNoSnapshot) {
		t.Errorf("EncodePNG(empty) error = %v, want ErrNoSnapshot", err)
	}
}
