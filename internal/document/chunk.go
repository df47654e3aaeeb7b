package document

// DefaultChunkSize is the maximum chunk length in characters.
const DefaultChunkSize = 1000

// Chunk splits text into contiguous, non-overlapping segments of at most
// size characters, preserving order. Empty text yields no chunks.
func Chunk(text string, size int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}
