package embeds

import (
	"fmt"
	"regexp"
	"strconv"
)

var (
	digitsOnly     = regexp.MustCompile(`^\d+$`)
	hoursPart      = regexp.MustCompile(`(\d+)h`)
	minutesPart    = regexp.MustCompile(`(\d+)m`)
	secondsPart    = regexp.MustCompile(`(\d+)s`)
	timeQueryParam = regexp.MustCompile(`[?&](?:t|start)=([^&]+)`)
)

// ParseTimeParam converts "90", "1h2m3s", "2m" or "45s" to seconds.
// Returns 0 for empty, unparseable or non-positive input.
func ParseTimeParam(s string) int {
	if s == "" {
		return 0
	}

	total := 0
	if digitsOnly.MatchString(s) {
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0
		}
		total = n
	} else {
		total += partValue(hoursPart, s) * 3600
		total += partValue(minutesPart, s) * 60
		total += partValue(secondsPart, s)
	}

	if total <= 0 {
		return 0
	}
	return total
}

func partValue(re *regexp.Regexp, s string) int {
	m := re.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// TimeFromParams extracts the t= or start= offset from a query string
// fragment such as "&t=1m30s&list=x".
func TimeFromParams(params string) int {
	m := timeQueryParam.FindStringSubmatch(params)
	if m == nil {
		return 0
	}
	return ParseTimeParam(m[1])
}

// FormatTwitchTime renders seconds in the player's 00h00m00s form.
// Returns "" when seconds is not positive.
func FormatTwitchTime(seconds int) string {
	if seconds <= 0 {
		return ""
	}
	return fmt.Sprintf("%02dh%02dm%02ds", seconds/3600, (seconds%3600)/60, seconds%60)
}
