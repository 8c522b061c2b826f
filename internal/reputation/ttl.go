package reputation

// TTLHours maps a reputation score to the block TTL in hours. The function
// is a monotonically non-decreasing step function: below a score of 10 the
// TTL stays at the 24h base, from 10 on it escalates in 120h steps per
// five additional failures (10→120h, 15→240h, 20→360h, ...).
func TTLHours(score int) int {
	if score < 10 {
		return 24
	}
	return 120 * (score/5 - 1)
}
