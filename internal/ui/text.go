package ui

func (a *App) maxCharsForText(marginX int) int {
	n := (a.curW - 2*marginX) / 6 // debug font is 6px wide
	if n < 1 {
		n = 1
	}
	return n
}

func (a *App) truncateText(s string, maxChars int) string {
	if maxChars <= 0 || len(s) <= maxChars {
		return s
	}
	if maxChars <= 3 {
		return s[:maxChars]
	}
	return s[:maxChars-3] + "..."
}
