// Package kifu exports finished matches: KIF game records, printable PDF
// sheets and parquet archives.
package kifu

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"shogi_backend/internal/domain/match"
	"shogi_backend/internal/shogi"
)

const timeLayout = "2006/01/02 15:04:05"

// Header is the metadata block of a KIF record.
type Header struct {
	Sente  string
	Gote   string
	Start  time.Time
	End    time.Time
	Winner string
	Reason match.Reason
}

func HeaderOf(m *match.Match) Header {
	return Header{
		Sente:  m.PlayerSente,
		Gote:   m.PlayerGote,
		Start:  m.StartedAt,
		End:    m.FinishedAt,
		Winner: m.Winner,
		Reason: m.Reason,
	}
}

var kindNames = [shogi.KindCount]string{
	shogi.King:   "玉",
	shogi.Rook:   "飛",
	shogi.Bishop: "角",
	shogi.Gold:   "金",
	shogi.Silver: "銀",
	shogi.Knight: "桂",
	shogi.Lance:  "香",
	shogi.Pawn:   "歩",
}

var promotedNames = [shogi.KindCount]string{
	shogi.Rook:   "龍",
	shogi.Bishop: "馬",
	shogi.Silver: "成銀",
	shogi.Knight: "成桂",
	shogi.Lance:  "成香",
	shogi.Pawn:   "と",
}

var rankKanji = [shogi.Size]rune{'一', '二', '三', '四', '五', '六', '七', '八', '九'}

func pieceName(p shogi.Piece) string {
	if p.Promoted {
		return promotedNames[p.Kind]
	}
	return kindNames[p.Kind]
}

func squareName(pos shogi.Position) string {
	return string(rune('１'+pos.File()-1)) + string(rankKanji[pos.Row])
}

// MoveText renders m, played on b, in KIF notation. prev is the destination
// of the previous move, if any.
func MoveText(b shogi.Board, m shogi.Move, prev *shogi.Position) string {
	var sb strings.Builder
	if prev != nil && *prev == m.To {
		sb.WriteString("同　")
	} else {
		sb.WriteString(squareName(m.To))
	}

	if m.IsDrop() {
		sb.WriteString(kindNames[m.Kind])
		sb.WriteString("打")
		return sb.String()
	}

	piece, _ := b.PieceAt(m.From)
	sb.WriteString(pieceName(piece))
	switch {
	case m.Promote || shogi.IsForcedPromotion(piece, m.To.Row):
		sb.WriteString("成")
	case shogi.CanPromote(piece, m.From.Row, m.To.Row):
		sb.WriteString("不成")
	}
	fmt.Fprintf(&sb, "(%d%d)", m.From.File(), m.From.Row+1)
	return sb.String()
}

func terminalText(reason match.Reason) string {
	switch reason {
	case match.ReasonResign:
		return "投了"
	case match.ReasonCheckmate, match.ReasonNoMoves:
		return "詰み"
	default:
		return "中断"
	}
}

func sideName(side string) string {
	if side == shogi.Gote.String() {
		return "後手"
	}
	return "先手"
}

// Encode writes a UTF-8 KIF record of h.
func Encode(w io.Writer, hdr Header, h shogi.History) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# ---- KIF ----")
	if !hdr.Start.IsZero() {
		fmt.Fprintf(bw, "開始日時：%s\n", hdr.Start.Format(timeLayout))
	}
	if !hdr.End.IsZero() {
		fmt.Fprintf(bw, "終了日時：%s\n", hdr.End.Format(timeLayout))
	}
	fmt.Fprintln(bw, "手合割：平手")
	fmt.Fprintf(bw, "先手：%s\n", hdr.Sente)
	fmt.Fprintf(bw, "後手：%s\n", hdr.Gote)
	fmt.Fprintln(bw, "手数----指手---------消費時間--")

	b := shogi.Initial()
	var prev *shogi.Position
	for i, m := range h {
		fmt.Fprintf(bw, "%4d %s   ( 0:00/00:00:00)\n", i+1, MoveText(b, m, prev))
		next, err := shogi.Apply(b, m)
		if err != nil {
			return fmt.Errorf("move %d (%s): %w", i+1, m, err)
		}
		b = next
		to := m.To
		prev = &to
	}

	if hdr.Winner != "" {
		fmt.Fprintf(bw, "%4d %s   ( 0:00/00:00:00)\n", len(h)+1, terminalText(hdr.Reason))
		fmt.Fprintf(bw, "まで%d手で%sの勝ち\n", len(h), sideName(hdr.Winner))
	}
	return bw.Flush()
}

// EncodeShiftJIS writes the record in Shift-JIS, the encoding most KIF
// readers expect.
func EncodeShiftJIS(w io.Writer, hdr Header, h shogi.History) error {
	tw := transform.NewWriter(w, japanese.ShiftJIS.NewEncoder())
	if err := Encode(tw, hdr, h); err != nil {
		return err
	}
	return tw.Close()
}

var (
	moveLineRe   = regexp.MustCompile(`^\s*(\d+)\s+(.+?)(?:\s+\(.*\))?\s*$`)
	fromSquareRe = regexp.MustCompile(`\((\d)(\d)\)`)
)

var ErrMalformedKIF = errors.New("malformed KIF")

// Decode reads a KIF record in UTF-8 or Shift-JIS and replays it. Only games
// from the standard starting position are supported.
func Decode(r io.Reader) (Header, shogi.History, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Header{}, nil, err
	}
	text, err := decodeText(data)
	if err != nil {
		return Header{}, nil, err
	}

	var (
		hdr   Header
		h     shogi.History
		prev  *shogi.Position
		ended bool
		b     = shogi.Initial()
	)
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if key, value, ok := headerLine(line); ok {
			if err = hdr.set(key, value); err != nil {
				return hdr, nil, fmt.Errorf("%w: line %d: %w", ErrMalformedKIF, i+1, err)
			}
			continue
		}

		if strings.HasPrefix(line, "まで") {
			switch {
			case strings.Contains(line, "先手の勝ち"):
				hdr.Winner = shogi.Sente.String()
			case strings.Contains(line, "後手の勝ち"):
				hdr.Winner = shogi.Gote.String()
			}
			continue
		}

		groups := moveLineRe.FindStringSubmatch(line)
		if groups == nil || ended {
			continue
		}
		token := strings.TrimSpace(groups[2])
		if reason, end := terminalReason(token); end {
			ended = true
			if reason != "" {
				hdr.Reason = reason
				hdr.Winner = b.Turn().Opponent().String()
			}
			continue
		}

		m, err := parseMoveToken(token, prev, b.Turn())
		if err != nil {
			return hdr, nil, fmt.Errorf("%w: line %d: %w", ErrMalformedKIF, i+1, err)
		}
		next, err := shogi.Apply(b, m)
		if err != nil {
			return hdr, nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		b = next
		h = append(h, m)
		to := m.To
		prev = &to
	}

	if winner, over := b.Winner(); over && hdr.Winner == "" {
		hdr.Winner = winner.String()
		hdr.Reason = match.ReasonCheckmate
	}
	return hdr, h, nil
}

func decodeText(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if utf8.Valid(data) {
		return string(data), nil
	}
	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), japanese.ShiftJIS.NewDecoder()))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(decoded) {
		return "", fmt.Errorf("%w: neither UTF-8 nor Shift-JIS", ErrMalformedKIF)
	}
	return string(decoded), nil
}

func headerLine(line string) (string, string, bool) {
	trim := strings.TrimSpace(line)
	if strings.HasPrefix(trim, "#") {
		return "", "", false
	}
	key, value, ok := strings.Cut(trim, "：")
	if !ok {
		return "", "", false
	}
	return key, strings.TrimSpace(value), true
}

func (hdr *Header) set(key, value string) error {
	switch key {
	case "先手", "下手":
		hdr.Sente = value
	case "後手", "上手":
		hdr.Gote = value
	case "開始日時", "終了日時":
		t, err := time.ParseInLocation(timeLayout, value, time.UTC)
		if err != nil {
			// dates without a clock are common
			t, err = time.ParseInLocation("2006/01/02", value, time.UTC)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
		if key == "開始日時" {
			hdr.Start = t
		} else {
			hdr.End = t
		}
	case "手合割":
		if value != "平手" {
			return fmt.Errorf("handicap %q is not supported", value)
		}
	}
	return nil
}

func terminalReason(token string) (match.Reason, bool) {
	switch token {
	case "投了":
		return match.ReasonResign, true
	case "詰み":
		return match.ReasonCheckmate, true
	case "中断", "持将棋", "千日手", "切れ負け", "反則勝ち", "反則負け", "入玉勝ち":
		return "", true
	default:
		return "", false
	}
}

func parseMoveToken(token string, prev *shogi.Position, mover shogi.Side) (shogi.Move, error) {
	work := token
	var to shogi.Position
	if strings.HasPrefix(work, "同") {
		if prev == nil {
			return shogi.Move{}, fmt.Errorf("%q refers to a previous move that does not exist", token)
		}
		to = *prev
		work = strings.TrimLeft(strings.TrimPrefix(work, "同"), " 　")
	} else {
		runes := []rune(work)
		if len(runes) < 3 {
			return shogi.Move{}, fmt.Errorf("move %q is too short", token)
		}
		file, ok := fileOf(runes[0])
		if !ok {
			return shogi.Move{}, fmt.Errorf("bad file in %q", token)
		}
		row, ok := rowOf(runes[1])
		if !ok {
			return shogi.Move{}, fmt.Errorf("bad rank in %q", token)
		}
		to = shogi.Position{Row: row, Col: shogi.Size - file}
		work = string(runes[2:])
	}

	var from *shogi.Position
	if groups := fromSquareRe.FindStringSubmatch(work); groups != nil {
		file, _ := strconv.Atoi(groups[1])
		rank, _ := strconv.Atoi(groups[2])
		if file < 1 || file > shogi.Size || rank < 1 || rank > shogi.Size {
			return shogi.Move{}, fmt.Errorf("bad origin in %q", token)
		}
		from = &shogi.Position{Row: rank - 1, Col: shogi.Size - file}
		work = fromSquareRe.ReplaceAllString(work, "")
	}

	promote := false
	switch {
	case strings.HasSuffix(work, "不成"):
		work = strings.TrimSuffix(work, "不成")
	case strings.HasSuffix(work, "成"):
		promote = true
		work = strings.TrimSuffix(work, "成")
	}
	drop := strings.HasSuffix(work, "打")
	work = strings.TrimSuffix(work, "打")

	kind, promoted, ok := kindOfName(work)
	if !ok {
		return shogi.Move{}, fmt.Errorf("unknown piece in %q", token)
	}

	if drop || from == nil {
		if promoted || promote {
			return shogi.Move{}, fmt.Errorf("%q drops a promoted piece", token)
		}
		return shogi.NewDrop(kind, to, mover), nil
	}
	return shogi.NewBoardMove(*from, to, promote), nil
}

func fileOf(r rune) (int, bool) {
	switch {
	case r >= '1' && r <= '9':
		return int(r - '0'), true
	case r >= '１' && r <= '９':
		return int(r-'１') + 1, true
	}
	return 0, false
}

func rowOf(r rune) (int, bool) {
	for i, k := range rankKanji {
		if k == r {
			return i, true
		}
	}
	return 0, false
}

func kindOfName(name string) (shogi.PieceKind, bool, bool) {
	switch name {
	case "王", "玉":
		return shogi.King, false, true
	case "竜":
		return shogi.Rook, true, true
	case "成歩":
		return shogi.Pawn, true, true
	}
	for k := range kindNames {
		kind := shogi.PieceKind(k)
		if kindNames[k] == name {
			return kind, false, true
		}
		if promotedNames[k] != "" && promotedNames[k] == name {
			return kind, true, true
		}
	}
	return shogi.King, false, false
}
