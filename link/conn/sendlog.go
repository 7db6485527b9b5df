package conn

import (
	"slices"

	"github.com/ValentinKolb/rlink/link/common"
)

// sendLog is the retransmission log: the sent data frames the peer has not
// acknowledged yet, ordered by sequence. It is owned by the connection actor.
type sendLog struct {
	entries []common.Frame
}

func compareSeq(f common.Frame, seq uint64) int {
	switch {
	case f.Sequence < seq:
		return -1
	case f.Sequence > seq:
		return 1
	default:
		return 0
	}
}

// append inserts f at its sequence position. A frame whose sequence is
// already logged is ignored and false is returned.
func (l *sendLog) append(f common.Frame) bool {
	// fast path, sequences are allocated in ascending order
	if n := len(l.entries); n == 0 || l.entries[n-1].Sequence < f.Sequence {
		l.entries = append(l.entries, f)
		return true
	}

	idx, found := slices.BinarySearchFunc(l.entries, f.Sequence, compareSeq)
	if found {
		return false
	}
	l.entries = slices.Insert(l.entries, idx, f)
	return true
}

// pruneThrough removes every entry with sequence <= ack and returns how many were removed
func (l *sendLog) pruneThrough(ack uint64) int {
	idx, found := slices.BinarySearchFunc(l.entries, ack, compareSeq)
	if found {
		idx++
	}
	if idx == 0 {
		return 0
	}

	// shift instead of reslicing so the backing array does not grow forever
	n := copy(l.entries, l.entries[idx:])
	clear(l.entries[n:])
	l.entries = l.entries[:n]
	return idx
}

// after returns a copy of all entries with sequence > ack in ascending order
func (l *sendLog) after(ack uint64) []common.Frame {
	idx, found := slices.BinarySearchFunc(l.entries, ack, compareSeq)
	if found {
		idx++
	}
	if idx >= len(l.entries) {
		return nil
	}
	return slices.Clone(l.entries[idx:])
}

// last returns the most recently sent entry
func (l *sendLog) last() (common.Frame, bool) {
	if len(l.entries) == 0 {
		return common.Frame{}, false
	}
	return l.entries[len(l.entries)-1], true
}

func (l *sendLog) len() int {
	return len(l.entries)
}
