package tierrouter

// EstimateTokens provides a rough token count estimate for a prompt or reply.
// Uses the approximation: ~4 chars per token + a small framing overhead.
func EstimateTokens(text string) int64 {
	if text == "" {
		return 0
	}
	// ~4 chars per token, rounded up
	total := (int64(len(text)) + 3) / 4
	// role and formatting overhead
	return total + 4
}
