package render

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

// pieceViewBox is the coordinate system every piece shape is drawn in.
const pieceViewBox = 45.0

// Piece silhouettes as SVG elements without paint; paint is added per color.
var pieceShapes = map[nchess.PieceType][]string{
	nchess.Pawn: {
		`<circle cx="22.5" cy="13" r="5"/>`,
		`<polygon points="17,35 28,35 25.5,19 19.5,19"/>`,
	},
	nchess.Rook: {
		`<polygon points="12,9 16,9 16,12 20,12 20,9 25,9 25,12 29,12 29,9 33,9 33,15 30,17 30,32 15,32 15,17 12,15"/>`,
		`<rect x="12" y="32" width="21" height="4"/>`,
	},
	nchess.Knight: {
		`<polygon points="14,35 31,35 30,22 28,12 22,8 20,10 13,18 14,22 19,20 16,28"/>`,
	},
	nchess.Bishop: {
		`<polygon points="16,35 29,35 26,28 19,28"/>`,
		`<ellipse cx="22.5" cy="20" rx="6" ry="9"/>`,
		`<circle cx="22.5" cy="9" r="2.5"/>`,
	},
	nchess.Queen: {
		`<polygon points="11,16 15,30 30,30 34,16 27,24 22.5,12 18,24"/>`,
		`<circle cx="11" cy="14" r="2"/>`,
		`<circle cx="22.5" cy="10" r="2"/>`,
		`<circle cx="34" cy="14" r="2"/>`,
		`<rect x="14" y="30" width="17" height="5"/>`,
	},
	nchess.King: {
		`<rect x="21" y="5" width="3" height="9"/>`,
		`<rect x="18" y="7.5" width="9" height="3"/>`,
		`<polygon points="13,20 32,20 29,33 16,33"/>`,
		`<ellipse cx="22.5" cy="19" rx="9" ry="4"/>`,
		`<rect x="14" y="33" width="17" height="3"/>`,
	},
}

const pieceBase = `<rect x="10" y="36" width="25" height="4" rx="1"/>`

func piecePaint(c nchess.Color) (fill, stroke string) {
	if c == nchess.White {
		return "#fafafa", "#1b1b1b"
	}
	return "#2b2b2b", "#000000"
}

// pieceElements returns the piece as painted SVG elements in its own 45x45 space.
func pieceElements(piece nchess.Piece) string {
	shapes, ok := pieceShapes[piece.Type()]
	if !ok {
		return ""
	}
	fill, stroke := piecePaint(piece.Color())
	var b strings.Builder
	for _, el := range append(append([]string{}, shapes...), pieceBase) {
		b.WriteString(paint(el, fill, stroke))
	}
	return b.String()
}

func paint(el, fill, stroke string) string {
	attrs := fmt.Sprintf(` fill="%s" stroke="%s" stroke-width="1.5" stroke-linejoin="round"/>`, fill, stroke)
	return strings.TrimSuffix(el, "/>") + attrs
}

func pieceDocument(piece nchess.Piece) []byte {
	return []byte(fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %g %g" width="%g" height="%g">%s</svg>`,
		pieceViewBox, pieceViewBox, pieceViewBox, pieceViewBox, pieceElements(piece)))
}

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

	icon, err := oksvg.ReadIconStream(bytes.NewReader(pieceDocument(piece)))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg %s: %w", piece, err)
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
