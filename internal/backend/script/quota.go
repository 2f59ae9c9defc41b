package script

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/relayforge/relay/internal/core"
)

// defaultQuotaSleep is used when the limit phrase is present but the reset
// clause cannot be parsed.
const defaultQuotaSleep = 5 * time.Minute

var (
	// limitPattern matches the provider phrasings for a usage cap.
	limitPattern = regexp.MustCompile(`(?i)(usage limit reached|hit your .{0,20}limit|limit reached)`)

	// resetPattern matches "resets <hour>[:<minute>] [am|pm] (<tz label>)".
	resetPattern = regexp.MustCompile(`(?i)resets\s+(\d{1,2})(?::(\d{2}))?\s*(am|pm)?\s*\(([^)]+)\)`)
)

// timezoneOffsets maps common reset-clause labels to whole-hour UTC offsets.
// Unknown labels fall back to the local system offset. Standard-time offsets
// are close enough for backoff purposes.
var timezoneOffsets = map[string]int{
	"UTC":                 0,
	"GMT":                 0,
	"Europe/London":       0,
	"Europe/Paris":        1,
	"Europe/Berlin":       1,
	"Europe/Madrid":       1,
	"America/Toronto":     -5,
	"America/New_York":    -5,
	"America/Chicago":     -6,
	"America/Denver":      -7,
	"America/Los_Angeles": -8,
	"Asia/Tokyo":          9,
	"Asia/Shanghai":       8,
	"Australia/Sydney":    10,
}

// detectQuotaLimit scans result/error text for a rate-limit backoff and
// computes a concrete wait. Returns Detected=false for empty input or when
// no limit phrase is present.
func detectQuotaLimit(message string) core.QuotaLimitInfo {
	return detectQuotaLimitAt(message, time.Now())
}

// detectQuotaLimitAt is the clock-injected form used by tests.
func detectQuotaLimitAt(message string, now time.Time) core.QuotaLimitInfo {
	if message == "" || !limitPattern.MatchString(message) {
		return core.QuotaLimitInfo{Detected: false}
	}

	info := core.QuotaLimitInfo{
		Detected:        true,
		OriginalMessage: message,
	}

	m := resetPattern.FindStringSubmatch(message)
	if m == nil {
		info.SleepDuration = defaultQuotaSleep
		return info
	}

	hour, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	hour = to24Hour(hour, strings.ToLower(m[3]))

	label := strings.TrimSpace(m[4])
	info.Timezone = label

	zone := time.Local
	if offset, ok := timezoneOffsets[label]; ok {
		zone = time.FixedZone(label, offset*3600)
	}

	// Today's reset instant in the advertised zone; if that instant is
	// already behind us the quota resets tomorrow.
	local := now.In(zone)
	reset := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, zone)
	if !reset.After(now) {
		reset = reset.Add(24 * time.Hour)
	}

	info.ResetTime = &reset
	info.SleepDuration = reset.Sub(now)
	if info.SleepDuration < 0 {
		info.SleepDuration = 0
	}
	return info
}

// to24Hour normalizes an hour with an optional am/pm marker.
func to24Hour(hour int, meridiem string) int {
	switch meridiem {
	case "pm":
		if hour < 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	return hour
}
