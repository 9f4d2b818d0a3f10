package util

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/harrisonrobin/taskslot/pkg/model"
)

// MarkerPrefix starts the first line of every event body written by the scheduler.
const MarkerPrefix = "taskslot-id:"

var (
	isoDurationRegex = regexp.MustCompile(`(\d+)([HMS])`)
	markerRegex      = regexp.MustCompile(`(?m)^` + regexp.QuoteMeta(MarkerPrefix) + ` (\S*)`)
)

// ParseDuration parses ISO 8601 duration format (PT1H30M) from Taskwarrior JSON export
func ParseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}

	if len(s) < 2 || s[0] != 'P' {
		return 0, fmt.Errorf("invalid ISO 8601 duration format: %s", s)
	}

	s = s[1:]
	if len(s) == 0 || s[0] != 'T' {
		return 0, fmt.Errorf("invalid ISO 8601 duration (missing T): P%s", s)
	}
	s = s[1:]

	var total time.Duration
	for _, match := range isoDurationRegex.FindAllStringSubmatch(s, -1) {
		value, _ := strconv.Atoi(match[1])
		switch match[2] {
		case "H":
			total += time.Duration(value) * time.Hour
		case "M":
			total += time.Duration(value) * time.Minute
		case "S":
			total += time.Duration(value) * time.Second
		}
	}

	if total == 0 {
		return 0, fmt.Errorf("invalid ISO 8601 duration: PT%s", s)
	}

	return total, nil
}

// HoursAnnotation renders d as the "<N>h" checklist annotation, rounding up to whole hours.
func HoursAnnotation(d time.Duration) (string, bool) {
	if d <= 0 {
		return "", false
	}
	h := int((d + time.Hour - 1) / time.Hour)
	return fmt.Sprintf("%dh", h), true
}

// EventBody builds the body for a booked work unit. The first line carries the task id
// so later runs can find the events this scheduler created.
func EventBody(task model.Task, unit, units int) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s\n", MarkerPrefix, task.ID))
	b.WriteString(fmt.Sprintf("Unit: %d/%d\n", unit, units))
	if task.Source != "" {
		b.WriteString(fmt.Sprintf("Source: %s\n", task.Source))
	}
	if task.Due != nil && !task.Due.IsZero() {
		b.WriteString(fmt.Sprintf("Due: %s\n", task.Due.UTC().Format(time.RFC3339)))
	}
	return b.String()
}

// TaskIDFromBody parses the task ID from an event body written by EventBody.
func TaskIDFromBody(body string) (string, bool) {
	matches := markerRegex.FindStringSubmatch(body)
	if len(matches) > 1 {
		return matches[1], true
	}
	return "", false
}
