package board

// Color represents the side a piece belongs to. Black (sente) moves first.
type Color uint8

const (
	Black Color = iota
	White
	NoColor Color = 2
)

// Other returns the opposite color.
func (c Color) Other() Color {
	return c ^ 1
}

// Forward returns the rank delta of a forward step for c.
// Black advances toward rank a, White toward rank i.
func (c Color) Forward() int {
	if c == Black {
		return -1
	}
	return 1
}

// String returns the color name.
func (c Color) String() string {
	switch c {
	case Black:
		return "Black"
	case White:
		return "White"
	default:
		return "NoColor"
	}
}

// PieceType represents the kind of a shogi piece, promoted kinds included.
type PieceType uint8

const (
	Pawn PieceType = iota
	Lance
	Knight
	Silver
	Gold
	Bishop
	Rook
	King
	ProPawn
	ProLance
	ProKnight
	ProSilver
	Horse
	Dragon
	NoPieceType PieceType = 14
)

// NumPieceTypes is the number of distinct piece types.
const NumPieceTypes = 14

// NumHandTypes is the number of piece types that can be held in hand (Pawn..Rook).
const NumHandTypes = 7

// HandTypes lists the droppable piece types in ascending value.
var HandTypes = [NumHandTypes]PieceType{Pawn, Lance, Knight, Silver, Gold, Bishop, Rook}

var pieceTypeNames = [NumPieceTypes + 1]string{
	"Pawn", "Lance", "Knight", "Silver", "Gold", "Bishop", "Rook", "King",
	"ProPawn", "ProLance", "ProKnight", "ProSilver", "Horse", "Dragon", "None",
}

// String returns the piece type name.
func (pt PieceType) String() string {
	if pt > NoPieceType {
		return "None"
	}
	return pieceTypeNames[pt]
}

// CanPromote returns true if pieces of this type may promote.
func (pt PieceType) CanPromote() bool {
	return pt <= Rook && pt != Gold
}

// IsPromoted returns true for promoted piece types.
func (pt PieceType) IsPromoted() bool {
	return pt >= ProPawn && pt < NoPieceType
}

// Promoted returns the promoted form, or pt itself if it cannot promote.
func (pt PieceType) Promoted() PieceType {
	switch pt {
	case Pawn, Lance, Knight, Silver:
		return pt + 8
	case Bishop:
		return Horse
	case Rook:
		return Dragon
	}
	return pt
}

// Unpromoted returns the base form. Captured pieces go to hand in this form.
func (pt PieceType) Unpromoted() PieceType {
	switch pt {
	case ProPawn, ProLance, ProKnight, ProSilver:
		return pt - 8
	case Horse:
		return Bishop
	case Dragon:
		return Rook
	}
	return pt
}

// MovesLikeGold returns true for gold and the four promoted minor pieces.
func (pt PieceType) MovesLikeGold() bool {
	return pt == Gold || (pt >= ProPawn && pt <= ProSilver)
}

// sfenLetters holds the base letters indexed by unpromoted type.
const sfenLetters = "PLNSGBRK"

// SFEN returns the SFEN token for the type in Black's case, e.g. "P" or "+R".
func (pt PieceType) SFEN() string {
	if pt >= NoPieceType {
		return ""
	}
	base := string(sfenLetters[pt.Unpromoted()])
	if pt.IsPromoted() {
		return "+" + base
	}
	return base
}

// PieceValue is the material value of each piece type in centipawns.
// Promoted minors are valued like a gold general.
var PieceValue = [NumPieceTypes + 1]int{
	Pawn:      90,
	Lance:     315,
	Knight:    405,
	Silver:    495,
	Gold:      540,
	Bishop:    855,
	Rook:      990,
	King:      15000,
	ProPawn:   540,
	ProLance:  540,
	ProKnight: 540,
	ProSilver: 540,
	Horse:     945,
	Dragon:    1395,
}

// HandValue is the value of a piece held in hand. Drops make hand pieces
// slightly more flexible than their board counterparts.
var HandValue = [NumHandTypes]int{
	Pawn:   100,
	Lance:  350,
	Knight: 450,
	Silver: 550,
	Gold:   600,
	Bishop: 950,
	Rook:   1100,
}

// Piece combines PieceType and Color into a single value.
// Encoded as: pieceType + color*14
type Piece uint8

// NoPiece marks an empty square.
const NoPiece Piece = 2 * NumPieceTypes

// NewPiece creates a Piece from PieceType and Color.
func NewPiece(pt PieceType, c Color) Piece {
	if pt >= NoPieceType || c >= NoColor {
		return NoPiece
	}
	return Piece(pt) + Piece(c)*NumPieceTypes
}

// Type returns the PieceType of the piece.
func (p Piece) Type() PieceType {
	if p >= NoPiece {
		return NoPieceType
	}
	return PieceType(p % NumPieceTypes)
}

// Color returns the Color of the piece.
func (p Piece) Color() Color {
	if p >= NoPiece {
		return NoColor
	}
	return Color(p / NumPieceTypes)
}

// String returns the SFEN token for the piece.
// Uppercase for Black, lowercase for White.
func (p Piece) String() string {
	if p >= NoPiece {
		return " "
	}
	s := p.Type().SFEN()
	if p.Color() == White {
		b := []byte(s)
		b[len(b)-1] += 'a' - 'A'
		return string(b)
	}
	return s
}

// PieceFromChar converts an SFEN letter to an unpromoted Piece.
func PieceFromChar(c byte) Piece {
	color := Black
	if c >= 'a' && c <= 'z' {
		color = White
		c -= 'a' - 'A'
	}
	for i := 0; i < len(sfenLetters); i++ {
		if sfenLetters[i] == c {
			return NewPiece(PieceType(i), color)
		}
	}
	return NoPiece
}

// Value returns the material value of the piece in centipawns.
func (p Piece) Value() int {
	return PieceValue[p.Type()]
}

// MaxHandCount is the number of pieces of each hand type in a full set.
var MaxHandCount = [NumHandTypes]int{18, 4, 4, 4, 4, 2, 2}

// Hand counts the pieces a player holds, indexed by hand type (Pawn..Rook).
type Hand [NumHandTypes]uint8

// Count returns how many pieces of type pt are held.
func (h *Hand) Count(pt PieceType) int {
	return int(h[pt])
}

// Has returns true if at least one piece of type pt is held.
func (h *Hand) Has(pt PieceType) bool {
	return h[pt] > 0
}

// IsEmpty returns true if the hand holds nothing.
func (h *Hand) IsEmpty() bool {
	return *h == Hand{}
}

// Total returns the number of pieces held.
func (h *Hand) Total() int {
	n := 0
	for _, c := range h {
		n += int(c)
	}
	return n
}
