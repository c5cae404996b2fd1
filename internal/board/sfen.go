package board

import (
	"fmt"
	"strconv"
	"strings"
)

// StartSFEN is the SFEN string for the standard starting position.
const StartSFEN = "lnsgkgsnl/1r5b1/ppppppppp/9/9/9/PPPPPPPPP/1B5R1/LNSGKGSNL b - 1"

// sfenHandOrder is the conventional order of hand pieces in SFEN output.
var sfenHandOrder = [NumHandTypes]PieceType{Rook, Bishop, Gold, Silver, Knight, Lance, Pawn}

// ParseSFEN parses an SFEN string into a Position. A leading "sfen " and the
// keyword "startpos" are accepted. The move number field is optional.
func ParseSFEN(sfen string) (*Position, error) {
	sfen = strings.TrimSpace(sfen)
	if sfen == "startpos" {
		sfen = StartSFEN
	}
	sfen = strings.TrimPrefix(sfen, "sfen ")

	parts := strings.Fields(sfen)
	if len(parts) < 3 || len(parts) > 4 {
		return nil, fmt.Errorf("%w: expected 3 or 4 fields, got %d", ErrInvalidSFEN, len(parts))
	}

	pos := &Position{}
	pos.Clear()

	if err := pos.parseBoard(parts[0]); err != nil {
		return nil, err
	}

	switch parts[1] {
	case "b":
		pos.SideToMove = Black
	case "w":
		pos.SideToMove = White
	default:
		return nil, fmt.Errorf("%w: invalid side to move: %q", ErrInvalidSFEN, parts[1])
	}

	if err := pos.parseHands(parts[2]); err != nil {
		return nil, err
	}

	if len(parts) == 4 {
		n, err := strconv.Atoi(parts[3])
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: invalid move number: %q", ErrInvalidSFEN, parts[3])
		}
		pos.MoveNumber = n
	}

	if pos.Pieces[Black][King].PopCount() != 1 || pos.Pieces[White][King].PopCount() != 1 {
		return nil, fmt.Errorf("%w: each side needs exactly one king", ErrInvalidSFEN)
	}

	pos.Hash = ComputeHash(pos)
	pos.PawnKey = ComputePawnKey(pos)
	pos.UpdateCheckers()

	if err := pos.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSFEN, err)
	}

	pos.resetHistory()
	return pos, nil
}

func (p *Position) parseBoard(s string) error {
	ranks := strings.Split(s, "/")
	if len(ranks) != 9 {
		return fmt.Errorf("%w: expected 9 ranks, got %d", ErrInvalidSFEN, len(ranks))
	}

	for rank, row := range ranks {
		col := 0
		promoted := false
		for i := 0; i < len(row); i++ {
			ch := row[i]
			switch {
			case ch == '+':
				if promoted {
					return fmt.Errorf("%w: double '+' in rank %d", ErrInvalidSFEN, rank+1)
				}
				promoted = true
				continue
			case ch >= '1' && ch <= '9':
				if promoted {
					return fmt.Errorf("%w: '+' before empty squares in rank %d", ErrInvalidSFEN, rank+1)
				}
				col += int(ch - '0')
			default:
				piece := PieceFromChar(ch)
				if piece == NoPiece {
					return fmt.Errorf("%w: invalid piece %q", ErrInvalidSFEN, ch)
				}
				if col >= 9 {
					return fmt.Errorf("%w: rank %d too long", ErrInvalidSFEN, rank+1)
				}
				if promoted {
					if !piece.Type().CanPromote() {
						return fmt.Errorf("%w: %q cannot be promoted", ErrInvalidSFEN, ch)
					}
					piece = NewPiece(piece.Type().Promoted(), piece.Color())
					promoted = false
				}
				p.setPiece(piece, NewSquare(col, rank))
				col++
			}
			if col > 9 {
				return fmt.Errorf("%w: rank %d too long", ErrInvalidSFEN, rank+1)
			}
		}
		if promoted {
			return fmt.Errorf("%w: dangling '+' in rank %d", ErrInvalidSFEN, rank+1)
		}
		if col != 9 {
			return fmt.Errorf("%w: rank %d has %d squares", ErrInvalidSFEN, rank+1, col)
		}
	}
	return nil
}

func (p *Position) parseHands(s string) error {
	if s == "-" {
		return nil
	}

	count := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch >= '0' && ch <= '9' {
			count = count*10 + int(ch-'0')
			if count > MaxHandCount[Pawn] {
				return fmt.Errorf("%w: hand count too large", ErrInvalidSFEN)
			}
			continue
		}

		piece := PieceFromChar(ch)
		if piece == NoPiece || piece.Type() == King {
			return fmt.Errorf("%w: invalid hand piece %q", ErrInvalidSFEN, ch)
		}
		if count == 0 {
			count = 1
		}
		pt := piece.Type()
		n := int(p.Hands[piece.Color()][pt]) + count
		if n > MaxHandCount[pt] {
			return fmt.Errorf("%w: %d %v in hand exceeds %d", ErrInvalidSFEN, n, pt, MaxHandCount[pt])
		}
		p.Hands[piece.Color()][pt] = uint8(n)
		count = 0
	}
	if count != 0 {
		return fmt.Errorf("%w: hand ends with a count", ErrInvalidSFEN)
	}
	return nil
}

// SFEN serializes the position. Hands are written in R B G S N L P order,
// Black's before White's.
func (p *Position) SFEN() string {
	var sb strings.Builder

	for rank := 0; rank < 9; rank++ {
		if rank > 0 {
			sb.WriteByte('/')
		}
		empty := 0
		for col := 0; col < 9; col++ {
			piece := p.PieceAt(NewSquare(col, rank))
			if piece == NoPiece {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteString(piece.String())
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
	}

	if p.SideToMove == Black {
		sb.WriteString(" b ")
	} else {
		sb.WriteString(" w ")
	}

	hands := 0
	for c := Black; c <= White; c++ {
		for _, pt := range sfenHandOrder {
			n := p.Hands[c][pt]
			if n == 0 {
				continue
			}
			if n > 1 {
				sb.WriteString(strconv.Itoa(int(n)))
			}
			sb.WriteString(NewPiece(pt, c).String())
			hands++
		}
	}
	if hands == 0 {
		sb.WriteByte('-')
	}

	sb.WriteByte(' ')
	sb.WriteString(strconv.Itoa(p.MoveNumber))
	return sb.String()
}

// ParsePositionCommand parses "<sfen|startpos> [moves m1 m2 ...]" and plays
// the listed moves, each validated against the legal move list.
func ParsePositionCommand(s string) (*Position, error) {
	s = strings.TrimSpace(s)
	base, movesPart, hasMoves := strings.Cut(s, "moves")
	pos, err := ParseSFEN(base)
	if err != nil {
		return nil, err
	}
	if !hasMoves {
		return pos, nil
	}
	for _, tok := range strings.Fields(movesPart) {
		m, err := ParseMove(tok, pos)
		if err != nil {
			return nil, err
		}
		pos.MakeMove(m)
	}
	return pos, nil
}
