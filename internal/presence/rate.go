package presence

// AttendanceRate converts accumulated presence into a percentage of the
// scheduled window, clamped to [0, 100]. Zero scheduled duration yields 0.
func AttendanceRate(durationSeconds, scheduledSeconds int64) float64 {
	if scheduledSeconds <= 0 {
		return 0
	}
	rate := float64(durationSeconds) / float64(scheduledSeconds) * 100
	if rate < 0 {
		return 0
	}
	if rate > 100 {
		return 100
	}
	return rate
}
