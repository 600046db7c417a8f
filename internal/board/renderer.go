package board

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"
	"os"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Orientation names the rank running along the bottom edge of the image.
type Orientation string

const (
	WhiteSide Orientation = "white"
	BlackSide Orientation = "black"
)

// MoveHighlight marks the from and to squares of the last applied move.
type MoveHighlight struct {
	From nchess.Square
	To   nchess.Square
}

// RenderOptions carries the per-frame overlays.
type RenderOptions struct {
	Highlight *MoveHighlight
	// Targets are the legal destination squares of a hovered piece.
	Targets []nchess.Square
}

// Renderer draws a position to PNG.
type Renderer interface {
	RenderPNG(ctx context.Context, board *nchess.Board, opts RenderOptions) ([]byte, error)
}

// Sink receives each rendered frame.
type Sink interface {
	Write(png []byte) error
}

// FileSink overwrites a single file with the latest frame.
type FileSink struct {
	Path string
}

func (s *FileSink) Write(data []byte) error {
	if strings.TrimSpace(s.Path) == "" {
		return fmt.Errorf("board file path is empty")
	}
	return os.WriteFile(s.Path, data, 0o644)
}

type pngRenderer struct {
	orientation Orientation
}

// NewRenderer builds a renderer oriented for the given side.
func NewRenderer(orientation Orientation) Renderer {
	if orientation != BlackSide {
		orientation = WhiteSide
	}
	return &pngRenderer{orientation: orientation}
}

const (
	squareSize   = 72
	boardSquares = 8
	boardSize    = squareSize * boardSquares
	sideMargin   = 28
	topMargin    = 28
	bottomMargin = 28
)

var (
	lightSquare     = color.RGBA{233, 207, 163, 255}
	darkSquare      = color.RGBA{187, 136, 96, 255}
	highlightFill   = color.NRGBA{R: 255, G: 228, B: 120, A: 140}
	targetFill      = color.NRGBA{R: 120, G: 190, B: 120, A: 150}
	coordinateColor = color.NRGBA{R: 60, G: 50, B: 40, A: 255}
)

func (r *pngRenderer) RenderPNG(ctx context.Context, board *nchess.Board, opts RenderOptions) ([]byte, error) {
	if board == nil {
		return nil, fmt.Errorf("board is nil")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	totalWidth := boardSize + sideMargin*2
	totalHeight := boardSize + topMargin + bottomMargin
	origin := image.Point{X: sideMargin, Y: topMargin}

	img := image.NewRGBA(image.Rect(0, 0, totalWidth, totalHeight))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{246, 240, 228, 255}), image.Point{}, imagedraw.Src)

	r.drawSquares(img, origin)
	if opts.Highlight != nil {
		r.drawSquareOverlay(img, opts.Highlight.From, origin, highlightFill)
		r.drawSquareOverlay(img, opts.Highlight.To, origin, highlightFill)
	}
	for _, sq := range opts.Targets {
		r.drawSquareOverlay(img, sq, origin, targetFill)
	}
	if err := r.drawPieces(img, board, origin); err != nil {
		return nil, err
	}
	r.drawCoordinates(img, origin)

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (r *pngRenderer) drawSquares(dst imagedraw.Image, origin image.Point) {
	for row := 0; row < boardSquares; row++ {
		for col := 0; col < boardSquares; col++ {
			sq := r.squareAt(row, col)
			rect := image.Rect(
				origin.X+col*squareSize,
				origin.Y+row*squareSize,
				origin.X+(col+1)*squareSize,
				origin.Y+(row+1)*squareSize,
			)
			imagedraw.Draw(dst, rect, image.NewUniform(squareColor(sq)), image.Point{}, imagedraw.Src)
		}
	}
}

func (r *pngRenderer) drawPieces(dst imagedraw.Image, board *nchess.Board, origin image.Point) error {
	boardMap := board.SquareMap()
	for row := 0; row < boardSquares; row++ {
		for col := 0; col < boardSquares; col++ {
			sq := r.squareAt(row, col)
			piece := boardMap[sq]
			if piece == nchess.NoPiece {
				continue
			}
			img, err := renderPieceImage(piece, squareSize)
			if err != nil {
				return err
			}
			rect := image.Rect(
				origin.X+col*squareSize,
				origin.Y+row*squareSize,
				origin.X+(col+1)*squareSize,
				origin.Y+(row+1)*squareSize,
			)
			imagedraw.Draw(dst, rect, img, image.Point{}, imagedraw.Over)
		}
	}
	return nil
}

func (r *pngRenderer) drawSquareOverlay(img *image.RGBA, sq nchess.Square, origin image.Point, clr color.Color) {
	row, col := r.cellOf(sq)
	rect := image.Rect(
		origin.X+col*squareSize,
		origin.Y+row*squareSize,
		origin.X+(col+1)*squareSize,
		origin.Y+(row+1)*squareSize,
	)
	imagedraw.Draw(img, rect, image.NewUniform(clr), image.Point{}, imagedraw.Over)
}

func (r *pngRenderer) drawCoordinates(img *image.RGBA, origin image.Point) {
	drawer := &font.Drawer{
		Dst:  img,
		Face: basicfont.Face7x13,
		Src:  image.NewUniform(coordinateColor),
	}
	ascent := basicfont.Face7x13.Metrics().Ascent.Ceil()

	for row := 0; row < boardSquares; row++ {
		sq := r.squareAt(row, 0)
		label := sq.Rank().String()
		baseline := origin.Y + row*squareSize + squareSize/2 + ascent/2
		drawCenteredText(drawer, label, origin.X-sideMargin/2, baseline)
	}
	for col := 0; col < boardSquares; col++ {
		sq := r.squareAt(boardSquares-1, col)
		label := sq.File().String()
		centerX := origin.X + col*squareSize + squareSize/2
		baseline := origin.Y + boardSize + ascent + 4
		drawCenteredText(drawer, label, centerX, baseline)
	}
}

func drawCenteredText(drawer *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := drawer.MeasureString(text).Round()
	drawer.Dot = fixed.P(centerX-width/2, baseline)
	drawer.DrawString(text)
}

// squareAt maps an image cell to a board square, honoring orientation.
// Row 0 is the top edge of the image.
func (r *pngRenderer) squareAt(row, col int) nchess.Square {
	if r.orientation == BlackSide {
		row = boardSquares - 1 - row
		col = boardSquares - 1 - col
	}
	file := nchess.File(col)
	rank := nchess.Rank(boardSquares - 1 - row)
	return nchess.NewSquare(file, rank)
}

func (r *pngRenderer) cellOf(sq nchess.Square) (row, col int) {
	row = boardSquares - 1 - int(sq.Rank())
	col = int(sq.File())
	if r.orientation == BlackSide {
		row = boardSquares - 1 - row
		col = boardSquares - 1 - col
	}
	return row, col
}

func squareColor(sq nchess.Square) color.Color {
	if (int(sq.File())+int(sq.Rank()))%2 == 0 {
		return darkSquare
	}
	return lightSquare
}

// ParseSquare converts algebraic square names like "e4".
func ParseSquare(s string) (nchess.Square, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) != 2 || s[0] < 'a' || s[0] > 'h' || s[1] < '1' || s[1] > '8' {
		return nchess.NoSquare, fmt.Errorf("invalid square: %q", s)
	}
	return nchess.NewSquare(nchess.File(s[0]-'a'), nchess.Rank(s[1]-'1')), nil
}
