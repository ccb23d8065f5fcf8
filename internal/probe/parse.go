package probe

import (
	"regexp"
	"strconv"
	"time"
)

var rttPatterns = []*regexp.Regexp{
	regexp.MustCompile(`time\s*[=<]\s*(\d+(?:\.\d+)?)\s*ms`),
	regexp.MustCompile(`時間\s*[=<>]*\s*(\d+(?:\.\d+)?)\s*ms`),
}

// ParseRTT extracts the round-trip time from ping output. Linux, macOS and
// Windows (English and Japanese locale) formats are recognised.
func ParseRTT(output string) (time.Duration, bool) {
	for _, re := range rttPatterns {
		match := re.FindStringSubmatch(output)
		if len(match) < 2 {
			continue
		}
		ms, err := strconv.ParseFloat(match[1], 64)
		if err != nil || ms < 0 {
			continue
		}
		return time.Duration(ms * float64(time.Millisecond)), true
	}
	return 0, false
}
