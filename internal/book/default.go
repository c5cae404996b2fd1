package book

import "strings"

// defaultLines covers the first moves of the static rook and ranging rook
// openings.
const defaultLines = `
# Black's first move
startpos | 7g7f 60
startpos | 2g2f 40

# White's reply
startpos moves 7g7f | 3c3d 55
startpos moves 7g7f | 8c8d 45
startpos moves 2g2f | 8c8d 60
startpos moves 2g2f | 3c3d 40

startpos moves 7g7f 3c3d | 2g2f 50
startpos moves 7g7f 3c3d | 6g6f 30
startpos moves 7g7f 3c3d | 5g5f 20
startpos moves 7g7f 8c8d | 2g2f 60
startpos moves 7g7f 8c8d | 6g6f 40
startpos moves 2g2f 8c8d | 2f2e 60
startpos moves 2g2f 8c8d | 7g7f 40
startpos moves 2g2f 3c3d | 7g7f 100

startpos moves 7g7f 3c3d 2g2f | 4c4d 50
startpos moves 7g7f 3c3d 2g2f | 8c8d 50
startpos moves 7g7f 8c8d 2g2f | 8d8e 60
startpos moves 7g7f 8c8d 2g2f | 3c3d 40
startpos moves 2g2f 8c8d 2f2e | 8d8e 70
startpos moves 2g2f 8c8d 2f2e | 3c3d 30
startpos moves 7g7f 3c3d 6g6f | 8c8d 60
startpos moves 7g7f 3c3d 6g6f | 3d3e 40
`

// DefaultBook returns the built-in opening book.
func DefaultBook() *Book {
	b, err := LoadText(strings.NewReader(defaultLines))
	if err != nil {
		panic("book: default lines: " + err.Error())
	}
	return b
}
