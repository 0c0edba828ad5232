package exec

// ChunkSize is the number of elements one worker processes.
const ChunkSize = 1024

// Chunk is a contiguous range of element offsets.
type Chunk struct {
	Start int
	Count int
	ID    int
}

func (c Chunk) End() int { return c.Start + c.Count }

// Partition splits [0, total) into ceil(total/size) contiguous chunks.
// Only the last chunk may be shorter than size. total <= 0 yields none.
func Partition(total, size int) []Chunk {
	if total <= 0 {
		return nil
	}
	if size <= 0 {
		size = ChunkSize
	}
	n := (total + size - 1) / size
	chunks := make([]Chunk, n)
	for i := range chunks {
		start := i * size
		chunks[i] = Chunk{Start: start, Count: min(size, total-start), ID: i}
	}
	return chunks
}
