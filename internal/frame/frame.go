// Package frame rasterizes game snapshots: the board on the left and the
// scoreboard panel on the right, as the terminal shows them.
package frame

import (
	"errors"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"sync"

	"gate-snake/internal/config"
	"gate-snake/internal/game"

	"github.com/fogleman/gg"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
)

// ErrNoSnapshot is returned when there is nothing to draw.
var ErrNoSnapshot = errors.New("frame: no snapshot")

var (
	colorBackground = color.RGBA{12, 12, 28, 255}
	colorFloor      = color.RGBA{20, 20, 36, 255}
	colorGrid       = color.RGBA{30, 30, 45, 255}
	colorWall       = color.RGBA{110, 110, 130, 255}
	colorImmune     = color.RGBA{170, 90, 200, 255}
	colorSnake      = color.RGBA{83, 255, 69, 255}
	colorHead       = color.RGBA{200, 255, 190, 255}
	colorGrowth     = color.RGBA{255, 200, 0, 255}
	colorPoison     = color.RGBA{255, 62, 62, 255}
	colorGate       = color.RGBA{0, 170, 255, 255}
	colorText       = color.RGBA{230, 230, 240, 255}
	colorDone       = color.RGBA{83, 255, 69, 255}
	colorOverlay    = color.RGBA{0, 0, 0, 170}
)

// Renderer draws snapshots with gg. Font faces are not safe for concurrent
// use, so Render serializes callers.
type Renderer struct {
	cellSize   int
	scoreWidth int

	mu        sync.Mutex
	textFace  font.Face
	titleFace font.Face
}

// New creates a renderer. A system TrueType font is used when one is
// found, the built-in bitmap face otherwise.
func New(cfg config.RenderConfig) *Renderer {
	if cfg.CellSize <= 0 {
		cfg.CellSize = config.DefaultRender().CellSize
	}
	if cfg.ScoreboardWidth < 0 {
		cfg.ScoreboardWidth = 0
	}

	r := &Renderer{
		cellSize:   cfg.CellSize,
		scoreWidth: cfg.ScoreboardWidth,
		textFace:   basicfont.Face7x13,
		titleFace:  basicfont.Face7x13,
	}
	r.loadFonts()
	return r
}

// loadFonts loads fonts once at construction to avoid per-frame file I/O.
func (r *Renderer) loadFonts() {
	path := fontPath()
	if path == "" {
		log.Debug().Msg("no TrueType font found, using bitmap face")
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to read font")
		return
	}
	parsed, err := opentype.Parse(data)
	if err != nil {
		log.Warn().Err(err).Str("path", path).Msg("failed to parse font")
		return
	}

	text, err := opentype.NewFace(parsed, &opentype.FaceOptions{Size: 14, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		log.Warn().Err(err).Msg("failed to create text face")
		return
	}
	title, err := opentype.NewFace(parsed, &opentype.FaceOptions{Size: 28, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		log.Warn().Err(err).Msg("failed to create title face")
		return
	}

	r.textFace, r.titleFace = text, title
	log.Debug().Str("path", path).Msg("fonts loaded")
}

func fontPath() string {
	paths := []string{
		"/usr/share/fonts/truetype/dejavu/DejaVuSansMono.ttf",
		"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
		"/System/Library/Fonts/Menlo.ttc",
		"C:\\Windows\\Fonts\\consola.ttf",
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	matches, _ := filepath.Glob("*.ttf")
	if len(matches) > 0 {
		return matches[0]
	}
	return ""
}

// Size returns the image dimensions for a snapshot.
func (r *Renderer) Size(snap *game.Snapshot) (width, height int) {
	return snap.Width*r.cellSize + r.scoreWidth, snap.Height * r.cellSize
}

// Render draws snap into a new image.
func (r *Renderer) Render(snap *game.Snapshot) (image.Image, error) {
	dc, err := r.draw(snap)
	if err != nil {
		return nil, err
	}
	return dc.Image(), nil
}

// EncodePNG renders snap and writes it to w as PNG.
func (r *Renderer) EncodePNG(w io.Writer, snap *game.Snapshot) error {
	dc, err := r.draw(snap)
	if err != nil {
		return err
	}
	return dc.EncodePNG(w)
}

func (r *Renderer) draw(snap *game.Snapshot) (*gg.Context, error) {
	if snap == nil || snap.Width <= 0 || snap.Height <= 0 {
		return nil, ErrNoSnapshot
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	width, height := r.Size(snap)
	dc := gg.NewContext(width, height)

	dc.SetColor(colorBackground)
	dc.DrawRectangle(0, 0, float64(width), float64(height))
	dc.Fill()

	r.drawBoard(dc, snap)
	r.drawScoreboard(dc, snap)
	if banner := snap.Banner(); banner != "" {
		r.drawBanner(dc, snap, banner)
	}
	return dc, nil
}

func (r *Renderer) cellRect(dc *gg.Context, c game.Cell, inset float64) {
	size := float64(r.cellSize)
	dc.DrawRectangle(float64(c.X)*size+inset, float64(c.Y)*size+inset, size-2*inset, size-2*inset)
}

func (r *Renderer) drawBoard(dc *gg.Context, snap *game.Snapshot) {
	size := float64(r.cellSize)
	boardW, boardH := float64(snap.Width)*size, float64(snap.Height)*size

	dc.SetColor(colorFloor)
	dc.DrawRectangle(0, 0, boardW, boardH)
	dc.Fill()

	dc.SetColor(colorGrid)
	dc.SetLineWidth(1)
	for x := 0; x <= snap.Width; x++ {
		dc.DrawLine(float64(x)*size, 0, float64(x)*size, boardH)
		dc.Stroke()
	}
	for y := 0; y <= snap.Height; y++ {
		dc.DrawLine(0, float64(y)*size, boardW, float64(y)*size)
		dc.Stroke()
	}

	dc.SetColor(colorWall)
	for _, c := range snap.Walls {
		r.cellRect(dc, c, 0)
	}
	dc.Fill()

	dc.SetColor(colorImmune)
	for _, c := range snap.Immune {
		r.cellRect(dc, c, 0)
	}
	dc.Fill()

	half := size / 2
	dc.SetColor(colorGrowth)
	dc.DrawCircle(float64(snap.Growth.X)*size+half, float64(snap.Growth.Y)*size+half, half*0.7)
	dc.Fill()

	dc.SetColor(colorPoison)
	dc.DrawCircle(float64(snap.Poison.X)*size+half, float64(snap.Poison.Y)*size+half, half*0.7)
	dc.Fill()

	dc.SetColor(colorGate)
	dc.SetLineWidth(2)
	for _, g := range snap.Gates {
		r.cellRect(dc, g.Cell, 2)
		dc.Stroke()
	}

	// Tail first so the head is drawn on top.
	for i := len(snap.Snake) - 1; i >= 0; i-- {
		if i == 0 {
			dc.SetColor(colorHead)
		} else {
			dc.SetColor(colorSnake)
		}
		r.cellRect(dc, snap.Snake[i], 1)
		dc.Fill()
	}
}

func (r *Renderer) drawScoreboard(dc *gg.Context, snap *game.Snapshot) {
	if r.scoreWidth == 0 {
		return
	}

	left := float64(snap.Width*r.cellSize) + 12
	lineHeight := r.textFace.Metrics().Height.Ceil() + 4
	y := float64(lineHeight) + 8

	dc.SetFontFace(r.textFace)
	doneFrom := len(snap.ScoreboardLines()) - len(snap.Mission)
	for i, line := range snap.ScoreboardLines() {
		dc.SetColor(colorText)
		if i >= doneFrom && snap.Mission[i-doneFrom].Done {
			dc.SetColor(colorDone)
		}
		dc.DrawString(line, left, y)
		y += float64(lineHeight)
	}
}

func (r *Renderer) drawBanner(dc *gg.Context, snap *game.Snapshot, banner string) {
	boardW := float64(snap.Width * r.cellSize)
	boardH := float64(snap.Height * r.cellSize)

	dc.SetColor(colorOverlay)
	dc.DrawRectangle(0, boardH/2-30, boardW, 60)
	dc.Fill()

	dc.SetFontFace(r.titleFace)
	dc.SetColor(colorText)
	if snap.Outcome.Reason == game.ReasonMissionComplete {
		dc.SetColor(colorDone)
	}
	dc.DrawStringAnchored(banner, boardW/2, boardH/2, 0.5, 0.5)
}
