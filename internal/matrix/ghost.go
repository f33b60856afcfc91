package matrix

// HasGhosting reports whether any two columns share two or more active rows.
//
// Three keys pressed on the corners of a rectangle (two columns, two rows)
// complete a current path through the fourth corner, which then reads as
// pressed although it is not:
//
//	. . w . q .
//	. . . . . .
//	. . m . a .
//
// Pressing w, q and a makes m look pressed. The columns need not be adjacent.
// Any column pair whose AND has more than one bit set is such a block; which
// of its keys are real cannot be told from the scan.
func HasGhosting(s Snapshot) bool {
	for c := 0; c < len(s); c++ {
		if s[c] == 0 {
			continue
		}
		for next := c + 1; next < len(s); next++ {
			common := s[c] & s[next]
			if common&(common-1) != 0 {
				return true
			}
		}
	}
	return false
}
