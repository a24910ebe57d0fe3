package utils

// Truncate cuts s to maxLen bytes and appends an ellipsis when anything was
// dropped. Used to keep recalled memory content to one terminal line.
func Truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
