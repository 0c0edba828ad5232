package exec

// Arena is a bump allocator for one chunk's input and output buffers.
// It is created when the chunk starts and released after its mutation
// queue has been applied; nothing it hands out is reused across chunks,
// slots or time samples.
type Arena struct {
	floats []float32
	ints   []int32
	fOff   int
	iOff   int
	blocks int
}

func NewArena(floatCap, intCap int) *Arena {
	return &Arena{
		floats: make([]float32, floatCap),
		ints:   make([]int32, intCap),
		blocks: 1,
	}
}

// Floats returns a zeroed slice of n float32s.
func (a *Arena) Floats(n int) []float32 {
	if a.fOff+n > len(a.floats) {
		// Start a new block; earlier slices stay valid.
		a.floats = make([]float32, max(n, 2*len(a.floats)))
		a.fOff = 0
		a.blocks++
	}
	s := a.floats[a.fOff : a.fOff+n : a.fOff+n]
	a.fOff += n
	return s
}

// Ints returns a zeroed slice of n int32s.
func (a *Arena) Ints(n int) []int32 {
	if a.iOff+n > len(a.ints) {
		a.ints = make([]int32, max(n, 2*len(a.ints)))
		a.iOff = 0
		a.blocks++
	}
	s := a.ints[a.iOff : a.iOff+n : a.iOff+n]
	a.iOff += n
	return s
}

// Blocks reports how many backing blocks have been allocated.
func (a *Arena) Blocks() int { return a.blocks }

// Release drops the backing storage.
func (a *Arena) Release() {
	a.floats = nil
	a.ints = nil
	a.fOff = 0
	a.iOff = 0
}
