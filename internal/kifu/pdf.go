package kifu

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"shogi_backend/internal/shogi"
)

const (
	cellSize     = 12.0
	boardLeft    = 40.0
	boardTop     = 45.0
	movesPerLine = 6
)

// WritePDF renders a one page game sheet: players, result, the final
// position and the move list in USI notation. The PDF core fonts cannot
// show kanji, so the sheet uses SFEN letters for pieces.
func WritePDF(w io.Writer, hdr Header, h shogi.History) error {
	final, err := shogi.Replay(h)
	if err != nil {
		return err
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("%s vs %s", hdr.Sente, hdr.Gote), true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(0, 10, fmt.Sprintf("%s (sente) vs %s (gote)", hdr.Sente, hdr.Gote))
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 10)
	pdf.Cell(0, 6, resultLine(hdr, len(h)))
	pdf.Ln(6)
	if !hdr.Start.IsZero() {
		pdf.Cell(0, 6, "Started "+hdr.Start.Format(timeLayout))
		pdf.Ln(6)
	}

	drawBoard(pdf, final)

	pdf.SetXY(15, boardTop+shogi.Size*cellSize+22)
	pdf.SetFont("Courier", "", 10)
	for _, line := range moveLines(h) {
		pdf.MultiCell(0, 4.5, line, "", "L", false)
	}

	if err = pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

func resultLine(hdr Header, plies int) string {
	if hdr.Winner == "" {
		return fmt.Sprintf("Unfinished after %d moves", plies)
	}
	return fmt.Sprintf("%s wins by %s after %d moves", hdr.Winner, hdr.Reason, plies)
}

func drawBoard(pdf *gofpdf.Fpdf, b shogi.Board) {
	pdf.SetFont("Helvetica", "", 8)
	for col := 0; col < shogi.Size; col++ {
		x := boardLeft + float64(col)*cellSize
		pdf.SetXY(x, boardTop-6)
		pdf.CellFormat(cellSize, 5, fmt.Sprint(shogi.Size-col), "", 0, "C", false, 0, "")
	}
	for row := 0; row < shogi.Size; row++ {
		pdf.SetXY(boardLeft+shogi.Size*cellSize+1, boardTop+float64(row)*cellSize)
		pdf.CellFormat(6, cellSize, string(rune('a'+row)), "", 0, "L", false, 0, "")
	}

	pdf.SetFont("Courier", "B", 11)
	for row := 0; row < shogi.Size; row++ {
		for col := 0; col < shogi.Size; col++ {
			x := boardLeft + float64(col)*cellSize
			y := boardTop + float64(row)*cellSize
			label := ""
			if p, ok := b.PieceAt(shogi.Position{Row: row, Col: col}); ok {
				label = p.String()
			}
			pdf.SetXY(x, y)
			pdf.CellFormat(cellSize, cellSize, label, "1", 0, "C", false, 0, "")
		}
	}

	pdf.SetFont("Helvetica", "", 10)
	pdf.SetXY(boardLeft, boardTop-14)
	pdf.Cell(0, 6, "Gote hand: "+handText(b.HandOf(shogi.Gote)))
	pdf.SetXY(boardLeft, boardTop+shogi.Size*cellSize+4)
	pdf.Cell(0, 6, "Sente hand: "+handText(b.HandOf(shogi.Sente)))
}

func handText(hand shogi.Hand) string {
	var parts []string
	for _, kind := range shogi.HandKinds {
		if n := hand.Count(kind); n > 0 {
			parts = append(parts, fmt.Sprintf("%s x%d", kind, n))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}

func moveLines(h shogi.History) []string {
	var lines []string
	var sb strings.Builder
	for i, m := range h {
		fmt.Fprintf(&sb, "%3d.%-7s", i+1, shogi.FormatUSIMove(m))
		if (i+1)%movesPerLine == 0 {
			lines = append(lines, sb.String())
			sb.Reset()
		}
	}
	if sb.Len() > 0 {
		lines = append(lines, sb.String())
	}
	return lines
}
