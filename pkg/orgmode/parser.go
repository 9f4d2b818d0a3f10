package orgmode

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/harrisonrobin/taskslot/pkg/model"
	"github.com/harrisonrobin/taskslot/pkg/util"
)

var (
	headlineRegex = regexp.MustCompile(`^\*+\s+(TODO|DONE)\s*(?:\[#([A-Z])\])?\s*(.*?)(?:\s+(:(\w+(:\w+)*):))?\s*$`)
	deadlineRegex = regexp.MustCompile(`DEADLINE:\s+<(\d{4}-\d{2}-\d{2})(?:\s+[A-Za-z]{2,3})?(?:\s+(\d{2}:\d{2}))?`)
	idRegex       = regexp.MustCompile(`^:ID:\s+(\S+)`)
	effortRegex   = regexp.MustCompile(`(?i)^:EFFORT:\s+(\S+)`)
)

// Source reads TODO headlines from a set of Org files.
type Source struct {
	files []string
}

func NewSource(files []string) *Source {
	return &Source{files: files}
}

// FetchUncompletedTasks parses every file and groups TODO headlines by tier.
func (s *Source) FetchUncompletedTasks(ctx context.Context) (map[int][]model.Task, error) {
	tasks, err := ParseFiles(s.files)
	if err != nil {
		return nil, err
	}
	out := make(map[int][]model.Task)
	for _, t := range tasks {
		if t.IsCompleted() {
			continue
		}
		out[t.Tier] = append(out[t.Tier], t)
	}
	return out, nil
}

// ParseFiles parses multiple Org-mode files. A file's modification time stands in
// for the last-modified time of each of its headlines.
func ParseFiles(filePaths []string) ([]model.Task, error) {
	var allTasks []model.Task
	for _, filePath := range filePaths {
		tasks, err := parseFile(filePath)
		if err != nil {
			return nil, err
		}
		allTasks = append(allTasks, tasks...)
	}
	return allTasks, nil
}

func parseFile(filePath string) ([]model.Task, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	return Parse(file, filePath, info.ModTime())
}

// priorityTier maps [#A]..[#C] onto tiers 1..3; no cookie is Org's default, B.
func priorityTier(p string) int {
	switch p {
	case "A":
		return 1
	case "C":
		return 3
	default:
		return 2
	}
}

// Parse reads TODO and DONE headlines of any level. Headlines without an :ID:
// property are identified by file and line.
func Parse(r io.Reader, source string, modified time.Time) ([]model.Task, error) {
	log.Debug().Str("file", source).Msg("parsing org file")
	scanner := bufio.NewScanner(r)
	var tasks []model.Task
	var current *model.Task
	var effort string

	flush := func() {
		if current == nil || current.Title == "" {
			current = nil
			return
		}
		if effort != "" {
			current.Checklist = append([]string{effort}, current.Checklist...)
		}
		tasks = append(tasks, *current)
		current = nil
	}

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if m := headlineRegex.FindStringSubmatch(line); m != nil {
			flush()
			effort = ""
			status := "pending"
			if m[1] == "DONE" {
				status = model.StatusCompleted
			}
			current = &model.Task{
				ID:           fmt.Sprintf("%s:%d", source, lineNo),
				Title:        strings.TrimSpace(m[3]),
				Tier:         priorityTier(m[2]),
				Importance:   model.ImportanceNormal,
				LastModified: modified,
				Status:       status,
				Source:       "orgmode",
			}
			if m[4] != "" {
				for _, tag := range strings.Split(strings.Trim(m[4], ":"), ":") {
					if tag == "important" {
						current.Importance = model.ImportanceHigh
					}
				}
			}
			continue
		}
		if strings.HasPrefix(line, "*") {
			// Any other headline ends the current entry.
			flush()
			continue
		}
		if current == nil {
			continue
		}

		if m := deadlineRegex.FindStringSubmatch(line); m != nil {
			if deadline, ok := parseDeadline(m[1], m[2]); ok {
				current.Due = &deadline
			}
		}
		if m := idRegex.FindStringSubmatch(line); m != nil {
			current.ID = m[1]
		} else if m := effortRegex.FindStringSubmatch(line); m != nil {
			effort = parseEffort(m[1])
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func parseDeadline(date, clock string) (time.Time, bool) {
	if clock == "" {
		clock = "00:00"
	}
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, time.Local)
	return t, err == nil
}

// parseEffort turns an Org effort ("1:30", "2h", "45min") into an hours annotation.
// Unparseable values are kept verbatim.
func parseEffort(s string) string {
	if h, m, ok := strings.Cut(s, ":"); ok {
		hours, err1 := strconv.Atoi(h)
		mins, err2 := strconv.Atoi(m)
		if err1 == nil && err2 == nil {
			if a, ok := util.HoursAnnotation(time.Duration(hours)*time.Hour + time.Duration(mins)*time.Minute); ok {
				return a
			}
			return ""
		}
	}
	if d, err := time.ParseDuration(strings.TrimSuffix(s, "in")); err == nil {
		if a, ok := util.HoursAnnotation(d); ok {
			return a
		}
	}
	return s
}
