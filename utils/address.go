package utils

import "strings"

// ImpactZone derives a rough "city/area" label from a free-text pickup
// address: the second-to-last comma-separated token, or the whole trimmed
// address when there is no comma. This is a crude proxy, not a geocoding
// lookup, and is only used for the donor's impact-zone stat.
func ImpactZone(address string) string {
	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return ""
	}

	parts := strings.Split(trimmed, ",")
	if len(parts) < 2 {
		return trimmed
	}

	zone := strings.TrimSpace(parts[len(parts)-2])
	if zone == "" {
		return trimmed
	}
	return zone
}

// CountImpactZones returns the number of distinct impact zones across the
// given addresses. Empty addresses are ignored.
func CountImpactZones(addresses []string) int {
	zones := make(map[string]struct{})
	for _, address := range addresses {
		zone := strings.ToLower(ImpactZone(address))
		if zone == "" {
			continue
		}
		zones[zone] = struct{}{}
	}
	return len(zones)
}
