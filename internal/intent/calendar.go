package intent

import (
	"regexp"
	"strconv"
	"strings"

	"flowmind/internal/domain"
)

const defaultDurationMinutes = 60

var durationPattern = regexp.MustCompile(`(\d+)\s*(hour|hr|minute|min)`)

// CalendarRules returns the calendar rule table in evaluation order.
func CalendarRules() []Rule {
	return []Rule{
		regexRule(string(domain.CalendarCreateEvent), []string{
			`schedule (.+?) (?:at|on|for) (.+?)(?:\s+(?:at|from)\s+(.+))?$`,
			`add event (.+?) (?:at|on|for) (.+?)(?:\s+(?:at|from)\s+(.+))?$`,
			`create meeting (.+?) (?:at|on|for) (.+?)(?:\s+(?:at|from)\s+(.+))?$`,
			`book (.+?) (?:at|on|for) (.+?)(?:\s+(?:at|from)\s+(.+))?$`,
		}, func(m []string) domain.Intent {
			return domain.CalendarIntent{
				Action:  domain.CalendarCreateEvent,
				Title:   group(m, 1),
				DateStr: group(m, 2),
				TimeStr: group(m, 3),
			}
		}),
		phraseRule(string(domain.CalendarListEvents), []string{
			"what do i have", "my schedule", "today's events", "tomorrow's events",
			"show calendar", "list events", "what's on my calendar",
		}, func(lower, _ string) domain.Intent {
			return domain.CalendarIntent{Action: domain.CalendarListEvents, TimeFilter: timeFilter(lower)}
		}),
		regexRule(string(domain.CalendarCheckAvailability), []string{
			`am i (?:free|available) (?:at|on) (.+)`,
			`do i have (?:time|availability) (?:at|on) (.+)`,
			`check availability (?:for|at|on) (.+)`,
			`free time (?:at|on) (.+)`,
		}, func(m []string) domain.Intent {
			return domain.CalendarIntent{Action: domain.CalendarCheckAvailability, TimeStr: group(m, 1)}
		}),
		phraseRule(string(domain.CalendarFindFreeTime), []string{
			"find free time", "when am i free", "available slots", "free slots",
		}, func(lower, _ string) domain.Intent {
			return domain.CalendarIntent{Action: domain.CalendarFindFreeTime, DurationMinutes: duration(lower)}
		}),
		regexRule(string(domain.CalendarScheduleMeeting), []string{
			`schedule (?:a )?meeting (?:with )?(.+?) (?:at|on|for) (.+?)(?:\s+(?:at|from)\s+(.+))?$`,
			`set up (?:a )?meeting (?:with )?(.+?) (?:at|on|for) (.+?)(?:\s+(?:at|from)\s+(.+))?$`,
		}, func(m []string) domain.Intent {
			return domain.CalendarIntent{
				Action:    domain.CalendarScheduleMeeting,
				Attendees: group(m, 1),
				DateStr:   group(m, 2),
				TimeStr:   group(m, 3),
			}
		}),
	}
}

func timeFilter(lower string) domain.TimeFilter {
	switch {
	case strings.Contains(lower, "tomorrow"):
		return domain.FilterTomorrow
	case strings.Contains(lower, "week"):
		return domain.FilterWeek
	case strings.Contains(lower, "month"):
		return domain.FilterMonth
	default:
		return domain.FilterToday
	}
}

// duration reads "<n> hour|hr|minute|min". The unit attached to the number
// decides, so other words containing "min" do not turn hours into minutes.
func duration(lower string) int {
	m := durationPattern.FindStringSubmatch(lower)
	if m == nil {
		return defaultDurationMinutes
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return defaultDurationMinutes
	}
	if m[2] == "hour" || m[2] == "hr" {
		return n * 60
	}
	return n
}
