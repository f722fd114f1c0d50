// Package terminal draws snapshots with tcell and maps keys to moves.
package terminal

import (
	"gate-snake/internal/game"

	"github.com/gdamore/tcell/v2"
)

// ScoreboardWidth is the number of columns of the panel right of the board.
const ScoreboardWidth = 20

const (
	glyphWall   = '#'
	glyphImmune = '@'
	glyphSnake  = 'O'
	glyphGrowth = '+'
	glyphPoison = '-'
	glyphGate   = 'G'
)

var (
	styleDefault = tcell.StyleDefault
	styleWall    = tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleImmune  = tcell.StyleDefault.Foreground(tcell.ColorPurple)
	styleSnake   = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleHead    = tcell.StyleDefault.Foreground(tcell.ColorLime).Bold(true)
	styleGrowth  = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	stylePoison  = tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleGate    = tcell.StyleDefault.Foreground(tcell.ColorAqua).Bold(true)
	styleDone    = tcell.StyleDefault.Foreground(tcell.ColorGreen)
	styleBanner  = tcell.StyleDefault.Reverse(true).Bold(true)
)

// Renderer draws the board at the top-left corner of the screen with the
// scoreboard panel to its right.
type Renderer struct {
	screen tcell.Screen
}

// NewRenderer wraps an initialized screen.
func NewRenderer(screen tcell.Screen) *Renderer {
	return &Renderer{screen: screen}
}

// Fits reports whether the screen is large enough for a board of w×h.
func (r *Renderer) Fits(w, h int) bool {
	sw, sh := r.screen.Size()
	return sw >= w+ScoreboardWidth && sh >= h
}

// Draw renders snap and shows the screen.
func (r *Renderer) Draw(snap *game.Snapshot) {
	r.screen.Clear()

	if !r.Fits(snap.Width, snap.Height) {
		r.drawText(0, 0, "Terminal too small", styleDefault)
		r.screen.Show()
		return
	}

	r.drawBoard(snap)
	r.drawScoreboard(snap)
	if banner := snap.Banner(); banner != "" {
		r.drawText((snap.Width-len(banner))/2, snap.Height/2, banner, styleBanner)
	}
	r.screen.Show()
}

func (r *Renderer) set(c game.Cell, glyph rune, style tcell.Style) {
	r.screen.SetContent(c.X, c.Y, glyph, nil, style)
}

func (r *Renderer) drawBoard(snap *game.Snapshot) {
	for _, c := range snap.Walls {
		r.set(c, glyphWall, styleWall)
	}
	for _, c := range snap.Immune {
		r.set(c, glyphImmune, styleImmune)
	}
	for i, c := range snap.Snake {
		style := styleSnake
		if i == 0 {
			style = styleHead
		}
		r.set(c, glyphSnake, style)
	}
	r.set(snap.Growth, glyphGrowth, styleGrowth)
	r.set(snap.Poison, glyphPoison, stylePoison)
	for _, g := range snap.Gates {
		r.set(g.Cell, glyphGate, styleGate)
	}
}

func (r *Renderer) drawScoreboard(snap *game.Snapshot) {
	left := snap.Width
	right := left + ScoreboardWidth - 1
	bottom := snap.Height - 1

	for x := left + 1; x < right; x++ {
		r.screen.SetContent(x, 0, tcell.RuneHLine, nil, styleDefault)
		r.screen.SetContent(x, bottom, tcell.RuneHLine, nil, styleDefault)
	}
	for y := 1; y < bottom; y++ {
		r.screen.SetContent(left, y, tcell.RuneVLine, nil, styleDefault)
		r.screen.SetContent(right, y, tcell.RuneVLine, nil, styleDefault)
	}
	r.screen.SetContent(left, 0, tcell.RuneULCorner, nil, styleDefault)
	r.screen.SetContent(right, 0, tcell.RuneURCorner, nil, styleDefault)
	r.screen.SetContent(left, bottom, tcell.RuneLLCorner, nil, styleDefault)
	r.screen.SetContent(right, bottom, tcell.RuneLRCorner, nil, styleDefault)

	lines := snap.ScoreboardLines()
	firstGoal := len(lines) - len(snap.Mission)
	for i, line := range lines {
		y := i + 1
		if y >= bottom {
			break
		}
		style := styleDefault
		if i >= firstGoal && snap.Mission[i-firstGoal].Done {
			style = styleDone
		}
		r.drawText(left+1, y, clip(line, ScoreboardWidth-2), style)
	}
}

func (r *Renderer) drawText(x, y int, s string, style tcell.Style) {
	for i, ch := range s {
		r.screen.SetContent(x+i, y, ch, nil, style)
	}
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// Action is what a key press asks for.
type Action uint8

const (
	ActionNone Action = iota
	ActionMove
	ActionQuit
)

// MapKey translates a key event. Arrows, hjkl and wasd move; q, Esc and
// Ctrl-C quit.
func MapKey(ev *tcell.EventKey) (Action, game.Direction) {
	switch ev.Key() {
	case tcell.KeyUp:
		return ActionMove, game.DirUp
	case tcell.KeyDown:
		return ActionMove, game.DirDown
	case tcell.KeyLeft:
		return ActionMove, game.DirLeft
	case tcell.KeyRight:
		return ActionMove, game.DirRight
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return ActionQuit, game.DirNone
	case tcell.KeyRune:
		switch ev.Rune() {
		case 'k', 'w':
			return ActionMove, game.DirUp
		case 'j', 's':
			return ActionMove, game.DirDown
		case 'h', 'a':
			return ActionMove, game.DirLeft
		case 'l', 'd':
			return ActionMove, game.DirRight
		case 'q', 'Q':
			return ActionQuit, game.DirNone
		}
	}
	return ActionNone, game.DirNone
}
