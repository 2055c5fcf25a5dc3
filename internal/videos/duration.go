package videos

import (
	"regexp"
	"strconv"
)

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISODuration converts an ISO-8601 duration such as PT1H2M3S into
// seconds. Absent groups count as zero. Malformed tokens yield (0, false).
func ParseISODuration(token string) (int, bool) {
	m := isoDurationPattern.FindStringSubmatch(token)
	if m == nil || token == "P" || token == "PT" {
		return 0, false
	}

	weights := []int{24 * 3600, 3600, 60, 1}
	total := 0
	for i, weight := range weights {
		group := m[i+1]
		if group == "" {
			continue
		}
		n, err := strconv.Atoi(group)
		if err != nil {
			return 0, false
		}
		total += n * weight
	}
	return total, true
}
