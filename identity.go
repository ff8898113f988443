package dinex

import "strconv"

// Rank identifies one process in the ring, in 0..N-1.
type Rank int

func (r Rank) String() string {
	return strconv.Itoa(int(r))
}

// Left returns the rank of the left neighbor, (r+1) mod n.
func (r Rank) Left(n int) Rank {
	return Rank((int(r) + 1) % n)
}

// Right returns the rank of the right neighbor, (r-1+n) mod n.
//
// For n=2 the left and right neighbor ranks coincide; protocol code
// must never tell the two shared forks apart by neighbor rank, only
// by the side carried in the message itself.
func (r Rank) Right(n int) Rank {
	return Rank((int(r) - 1 + n) % n)
}
