package layering

// MergeChunks composes flat key-value chunks ordered from strongest to
// weakest. Keys present in a stronger chunk replace the weaker value as a
// whole; values are deep-copied so the result can be mutated freely.
func MergeChunks(chunks ...map[string]any) map[string]any {
	out := map[string]any{}
	for i := len(chunks) - 1; i >= 0; i-- {
		for key, value := range chunks[i] {
			out[key] = Clone(value)
		}
	}
	return out
}
