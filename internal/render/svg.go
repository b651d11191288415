package render

import (
	"bytes"
	"fmt"
	"html"

	nchess "github.com/corentings/chess/v2"
)

const (
	svgSquare = 45
	svgMargin = 20
)

var (
	boardRanks = []nchess.Rank{nchess.Rank8, nchess.Rank7, nchess.Rank6, nchess.Rank5, nchess.Rank4, nchess.Rank3, nchess.Rank2, nchess.Rank1}
	boardFiles = []nchess.File{nchess.FileA, nchess.FileB, nchess.FileC, nchess.FileD, nchess.FileE, nchess.FileF, nchess.FileG, nchess.FileH}
)

// SVG renders the board as standalone SVG markup. The last move, when set,
// is shown as a gray origin square and an arrow to the destination.
func SVG(board *nchess.Board, opts Options) []byte {
	opts = opts.withDefaults()
	total := svgSquare*8 + svgMargin*2

	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="%d" height="%d">`,
		total, total, opts.Size, opts.Size)
	if opts.Title != "" {
		fmt.Fprintf(&buf, `<title>%s</title>`, html.EscapeString(opts.Title))
	}
	fmt.Fprintf(&buf, `<rect x="0" y="0" width="%d" height="%d" fill="%s"/>`, total, total, hex(frameColor))

	for row, rank := range boardRanks {
		for col, file := range boardFiles {
			sq := nchess.NewSquare(file, rank)
			fill := hex(squareColor(sq))
			if opts.LastMove != nil && opts.LastMove.From == sq {
				fill = hex(fromSquareFill)
			}
			x, y := svgMargin+col*svgSquare, svgMargin+row*svgSquare
			fmt.Fprintf(&buf, `<rect class="square %s" x="%d" y="%d" width="%d" height="%d" fill="%s"/>`,
				sq.String(), x, y, svgSquare, svgSquare, fill)
		}
	}

	if board != nil {
		squares := board.SquareMap()
		for row, rank := range boardRanks {
			for col, file := range boardFiles {
				piece, ok := squares[nchess.NewSquare(file, rank)]
				if !ok || piece == nchess.NoPiece {
					continue
				}
				x, y := svgMargin+col*svgSquare, svgMargin+row*svgSquare
				fmt.Fprintf(&buf, `<g class="piece" transform="translate(%d %d)">%s</g>`, x, y, pieceElements(piece))
			}
		}
	}

	if hl := opts.LastMove; hl != nil && hl.From != hl.To {
		fx, fy := svgCenter(hl.From)
		tx, ty := svgCenter(hl.To)
		fmt.Fprintf(&buf, `<defs><marker id="arrowhead" markerWidth="4" markerHeight="4" refX="2" refY="2" orient="auto"><path d="M0,0 L4,2 L0,4 z" fill="%s"/></marker></defs>`, hex(arrowColor))
		fmt.Fprintf(&buf, `<line class="arrow" x1="%d" y1="%d" x2="%d" y2="%d" stroke="%s" stroke-width="7" stroke-opacity="0.7" marker-end="url(#arrowhead)"/>`,
			fx, fy, tx, ty, hex(arrowColor))
	}

	if opts.Coordinates {
		for i, file := range boardFiles {
			x := svgMargin + i*svgSquare + svgSquare/2
			fmt.Fprintf(&buf, `<text x="%d" y="%d" font-size="12" text-anchor="middle" fill="%s">%s</text>`,
				x, total-6, hex(coordinateTextColor), file.String())
		}
		for i, rank := range boardRanks {
			y := svgMargin + i*svgSquare + svgSquare/2 + 4
			fmt.Fprintf(&buf, `<text x="%d" y="%d" font-size="12" text-anchor="middle" fill="%s">%s</text>`,
				svgMargin/2, y, hex(coordinateTextColor), rank.String())
		}
	}

	buf.WriteString(`</svg>`)
	return buf.Bytes()
}

func svgCenter(sq nchess.Square) (int, int) {
	col := int(sq.File())
	row := 7 - int(sq.Rank())
	return svgMargin + col*svgSquare + svgSquare/2, svgMargin + row*svgSquare + svgSquare/2
}
