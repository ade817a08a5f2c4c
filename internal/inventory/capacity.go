package inventory

// slotTable maps each sizing tier to its domain slot count.
var slotTable = map[CapacityMode]int{
	CapacityLow:    5,
	CapacityMedium: 7,
	CapacityHigh:   10,
}

// SlotsFor returns the slot count of a mode. Unknown modes get the
// smallest tier rather than zero, so a bad value never bricks a server.
func SlotsFor(mode CapacityMode) int {
	if n, ok := slotTable[mode]; ok {
		return n
	}
	return slotTable[CapacityLow]
}

// CanAccept reports whether the server has at least one free slot.
func CanAccept(s *Server) bool {
	return s.CurrentDomains < s.MaxDomains
}

// RemainingSlots returns the free slot count, never negative.
func RemainingSlots(s *Server) int {
	if s.CurrentDomains >= s.MaxDomains {
		return 0
	}
	return s.MaxDomains - s.CurrentDomains
}

// UtilizationPercent returns occupancy as a percentage, 0 when the server
// has no slots at all.
func UtilizationPercent(s *Server) float64 {
	if s.MaxDomains == 0 {
		return 0
	}
	return float64(s.CurrentDomains) / float64(s.MaxDomains) * 100
}

// StatusFor derives the server status from its assignment counter.
func StatusFor(currentDomains int) ServerStatus {
	if currentDomains > 0 {
		return ServerInUse
	}
	return ServerFree
}
