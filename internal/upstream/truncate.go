package upstream

// Truncate cuts text to at most max runes. Text at or under the limit is
// returned unchanged.
func Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	count := 0
	for i := range text {
		if count == max {
			return text[:i]
		}
		count++
	}
	return text
}
