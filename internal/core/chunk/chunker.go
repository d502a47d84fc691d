package chunk

// Chunker splits long text into overlapping fixed-size windows suitable for
// embedding. Splitting is deterministic: the same input always yields the
// same chunk sequence.
type Chunker struct {
	size    int
	overlap int
}

const (
	// DefaultSize is the target chunk length in runes.
	DefaultSize = 1000
	// DefaultOverlap is how many runes consecutive chunks share, so retrieval
	// keeps context across chunk boundaries.
	DefaultOverlap = 200
)

func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 || overlap >= size {
		overlap = size / 5
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split returns the ordered chunk sequence for text. Non-empty input never
// produces zero chunks.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= c.size {
		return []string{text}
	}

	step := c.size - c.overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
