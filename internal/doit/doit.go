// Package doit loads the activity-log data file and computes the summary
// shown on the doit page.
package doit

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Record is one day's activity entry.
type Record struct {
	Date        string `json:"date"` // "2025.07.25"
	Sleep       string `json:"sleep,omitempty"`
	Wake        string `json:"wake,omitempty"`
	Steps       int    `json:"steps,omitempty"`
	Gongtougong int    `json:"gongtougong,omitempty"`
}

// Data is the parsed activity log, newest first.
type Data struct {
	Year    string
	Records []Record
}

// Summary aggregates the stats shown above the record list.
type Summary struct {
	EarlyWakeCount   int
	TotalSteps       int
	TotalGongtougong int
	TotalDays        int
}

// Load reads the data file. It accepts the flat array format and migrates
// the legacy year-grouped object on read. A missing or malformed file is
// empty data, not an error: the page is simply skipped.
func Load(path string) (Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Data{}, fmt.Errorf("read doit data: %w", err)
	}

	var records []Record
	if err := json.Unmarshal(raw, &records); err == nil {
		return fromRecords(records), nil
	}

	// Legacy format: {"2025": [...], "2024": [...]}.
	var grouped map[string][]Record
	if err := json.Unmarshal(raw, &grouped); err != nil {
		return Data{}, fmt.Errorf("parse doit data: %w", err)
	}

	var years []string
	for year := range grouped {
		years = append(years, year)
	}
	sort.Sort(sort.Reverse(sort.StringSlice(years)))
	if len(years) == 0 {
		return Data{}, nil
	}
	return Data{Year: years[0], Records: sortRecords(grouped[years[0]])}, nil
}

func fromRecords(records []Record) Data {
	records = sortRecords(records)
	year := ""
	if len(records) > 0 {
		if parts := strings.Split(records[0].Date, "."); len(parts) == 3 {
			year = parts[0]
		}
	}
	return Data{Year: year, Records: records}
}

func sortRecords(records []Record) []Record {
	// "2025.07.25" sorts correctly as a plain string.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date > records[j].Date
	})
	return records
}

// Summarize computes the aggregate stats for a record set.
func Summarize(records []Record) Summary {
	var s Summary
	s.TotalDays = len(records)
	for _, r := range records {
		if wake, ok := parseClock(r.Wake); ok && wake < 8 {
			s.EarlyWakeCount++
		}
		s.TotalSteps += r.Steps
		s.TotalGongtougong += r.Gongtougong
	}
	return s
}

// parseClock converts "8.18" into 8.3 hours.
func parseClock(clock string) (float64, bool) {
	if clock == "" {
		return 0, false
	}
	parts := strings.SplitN(clock, ".", 2)
	hours, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, false
	}
	minutes := 0
	if len(parts) == 2 && parts[1] != "" {
		if minutes, err = strconv.Atoi(parts[1]); err != nil {
			return 0, false
		}
	}
	return float64(hours) + float64(minutes)/60, true
}

// FormatClock renders "8.18" as "8:18".
func FormatClock(clock string) string {
	if clock == "" {
		return ""
	}
	parts := strings.SplitN(clock, ".", 2)
	minutes := "00"
	if len(parts) == 2 && parts[1] != "" {
		minutes = parts[1]
		if len(minutes) == 1 {
			minutes = "0" + minutes
		}
	}
	return parts[0] + ":" + minutes
}

// FormatStepsAsWan renders large step counts in units of ten thousand.
func FormatStepsAsWan(steps int) string {
	if steps >= 10000 {
		return strconv.FormatFloat(float64(steps)/10000, 'f', 1, 64) + "万"
	}
	return formatThousands(steps)
}

// MonthDay trims "2025.07.25" to "07.25" for display.
func MonthDay(date string) string {
	if parts := strings.Split(date, "."); len(parts) == 3 {
		return parts[1] + "." + parts[2]
	}
	return date
}

func formatThousands(n int) string {
	s := strconv.Itoa(n)
	if len(s) <= 3 {
		return s
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	return b.String()
}
