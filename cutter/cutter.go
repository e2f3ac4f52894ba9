package cutter

// Definition is a single cutter rule: a literal pattern, and the position
// within it where the stream is split
type Definition struct {
	Pattern []byte
	// number of matched bytes belonging to the preceding segment
	// 0 <= CutOffset <= len(Pattern)
	CutOffset int
	// 1-based line of the control file this rule came from
	Line int
}

// Cut is the result of an earliest-cut search: the absolute position within
// the searched buffer, and the index of the Definition that produced it
type Cut struct {
	Pos    int
	Cutter int
}

// TailCutter marks a segment that was not terminated by any definition
const TailCutter = -1

type Segment struct {
	// Only valid for the duration of the callback it was passed to
	Data []byte
	// position of Data[0] within the newline-stripped (sub)stream
	Offset int64
	Cutter int
}

func (s Segment) IsTail() bool { return s.Cutter == TailCutter }

type SegmentCallback func(Segment) error
