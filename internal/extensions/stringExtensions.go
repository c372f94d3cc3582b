package extensions

// TruncateString counts runes, so multi-byte characters are never split.
func TruncateString(s string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}

	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}

	if maxLen <= 3 {
		return string(runes[:maxLen])
	}

	return string(runes[:maxLen-3]) + "..."
}

func ValueOrDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}

	return *s
}

func YesNo(b bool) string {
	if b {
		return "Yes"
	}

	return "No"
}
