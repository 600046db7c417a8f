package board

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Piece glyphs are inline SVG on a 45x45 viewbox. The fill and stroke
// placeholders are substituted per side before rasterizing.
const (
	glyphPawn = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45">
<path d="M22.5 9c-2.2 0-4 1.8-4 4 0 1.1.4 2.1 1.2 2.8-2 1.2-3.2 3.3-3.2 5.7 0 2.1 1 4 2.6 5.2-3.4 1.5-5.9 5.4-5.9 9.3h18.6c0-3.9-2.5-7.8-5.9-9.3 1.6-1.2 2.6-3.1 2.6-5.2 0-2.4-1.2-4.5-3.2-5.7.8-.7 1.2-1.7 1.2-2.8 0-2.2-1.8-4-4-4z" style="fill:FILL;stroke:STROKE;stroke-width:1.5"/>
</svg>`
	glyphRook = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45">
<path d="M9 39h27v-3H9v3zM12 36v-4h21v4H12zM14 32V14h17v18H14zM11 14V9h4v2h4V9h7v2h4V9h4v5H11z" style="fill:FILL;stroke:STROKE;stroke-width:1.5;stroke-linejoin:round"/>
</svg>`
	glyphKnight = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45">
<path d="M22 10c10.5 1 16.5 8 16 29H15c0-9 10-6.5 8-21M24 18c.38 2.91-5.55 7.37-8 9-3 2-2.82 4.34-5 4-1.042-.94 1.41-3.04 0-3-1 0 .19 1.23-1 2-1 0-4.003 1-4-4 0-2 6-12 6-12s1.89-1.9 2-3.5c-.73-.994-.5-2-.5-3 1-1 3 2.5 3 2.5h2s.78-1.992 2.5-3c1 0 1 3 1 3" style="fill:FILL;stroke:STROKE;stroke-width:1.5;stroke-linejoin:round"/>
</svg>`
	glyphBishop = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45">
<path d="M22.5 8c1.7 0 3 1.3 3 3 0 .9-.4 1.7-1 2.3 3.3 2.4 6.5 7 6.5 11.2 0 3.1-1.9 5.7-4.5 7v3H18.5v-3c-2.6-1.3-4.5-3.9-4.5-7 0-4.2 3.2-8.8 6.5-11.2-.6-.6-1-1.4-1-2.3 0-1.7 1.3-3 3-3zM13 37h19v3H13v-3z" style="fill:FILL;stroke:STROKE;stroke-width:1.5;stroke-linejoin:round"/>
<path d="M22.5 17v8M19 21h7" style="fill:none;stroke:STROKE;stroke-width:1.5"/>
</svg>`
	glyphQueen = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45">
<path d="M9 13l4 17h19l4-13-7 6-5.5-11-5.5 11-7-6z" style="fill:FILL;stroke:STROKE;stroke-width:1.5;stroke-linejoin:round"/>
<path d="M12 32h21v3H12v-3zM11 37h23v3H11v-3z" style="fill:FILL;stroke:STROKE;stroke-width:1.5"/>
<circle cx="9" cy="12" r="2.2" style="fill:FILL;stroke:STROKE;stroke-width:1.2"/>
<circle cx="22.5" cy="9" r="2.2" style="fill:FILL;stroke:STROKE;stroke-width:1.2"/>
<circle cx="36" cy="12" r="2.2" style="fill:FILL;stroke:STROKE;stroke-width:1.2"/>
</svg>`
	glyphKing = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45">
<path d="M22.5 6v6M19.5 9h6" style="fill:none;stroke:STROKE;stroke-width:2"/>
<path d="M22.5 14c-3 0-9 2.5-9 8.5 0 4 3 6.5 5 7.5v5h8v-5c2-1 5-3.5 5-7.5 0-6-6-8.5-9-8.5zM14 36h17v4H14v-4z" style="fill:FILL;stroke:STROKE;stroke-width:1.5;stroke-linejoin:round"/>
</svg>`
)

type pieceCacheKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func renderPieceImage(piece nchess.Piece, size int) (image.Image, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	data := pieceGlyph(piece)
	icon, err := oksvg.ReadIconStream(bytes.NewReader(sanitizeSVG([]byte(data))))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}

	if icon.ViewBox.W <= 0 {
		icon.ViewBox.W = float64(size)
	}
	if icon.ViewBox.H <= 0 {
		icon.ViewBox.H = float64(size)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)

	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()

	return img, nil
}

func pieceGlyph(piece nchess.Piece) string {
	var glyph string
	switch piece.Type() {
	case nchess.King:
		glyph = glyphKing
	case nchess.Queen:
		glyph = glyphQueen
	case nchess.Rook:
		glyph = glyphRook
	case nchess.Bishop:
		glyph = glyphBishop
	case nchess.Knight:
		glyph = glyphKnight
	default:
		glyph = glyphPawn
	}

	fill, stroke := "#f5f5f0", "#2b2b2b"
	if piece.Color() == nchess.Black {
		fill, stroke = "#2b2b2b", "#f5f5f0"
	}
	glyph = strings.ReplaceAll(glyph, "FILL", fill)
	return strings.ReplaceAll(glyph, "STROKE", stroke)
}

func sanitizeSVG(svg []byte) []byte {
	fixed := bytes.ReplaceAll(svg, []byte("fill: #"), []byte("fill:#"))
	fixed = bytes.ReplaceAll(fixed, []byte("stroke: #"), []byte("stroke:#"))
	fixed = bytes.ReplaceAll(fixed, []byte("stop-color: #"), []byte("stop-color:#"))
	return fixed
}
