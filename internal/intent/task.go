package intent

import "flowmind/internal/domain"

// TaskRules returns the task rule table in evaluation order.
func TaskRules() []Rule {
	return []Rule{
		regexRule(string(domain.TaskCreate), []string{
			`add task (.+?)(?:\s+(?:for|due|by)\s+(.+))?$`,
			`create task (.+?)(?:\s+(?:for|due|by)\s+(.+))?$`,
			`new task (.+?)(?:\s+(?:for|due|by)\s+(.+))?$`,
			`task: (.+?)(?:\s+(?:for|due|by)\s+(.+))?$`,
		}, func(m []string) domain.Intent {
			return domain.TaskIntent{Action: domain.TaskCreate, Title: group(m, 1), DueDate: group(m, 2)}
		}),
		regexRule(string(domain.TaskComplete), []string{
			`complete (?:task )?(.+)`,
			`done (?:with )?(.+)`,
			`finished (.+)`,
			`mark (.+) (?:as )?(?:complete|done)`,
		}, func(m []string) domain.Intent {
			return domain.TaskIntent{Action: domain.TaskComplete, Identifier: group(m, 1)}
		}),
		regexRule(string(domain.TaskDelete), []string{
			`delete (?:task )?(.+)`,
			`remove (?:task )?(.+)`,
			`cancel (?:task )?(.+)`,
		}, func(m []string) domain.Intent {
			return domain.TaskIntent{Action: domain.TaskDelete, Identifier: group(m, 1)}
		}),
		phraseRule(string(domain.TaskList), []string{
			"show tasks", "list tasks", "my tasks", "what tasks", "tasks list",
		}, func(lower, _ string) domain.Intent {
			in := domain.TaskIntent{Action: domain.TaskList}
			switch {
			case containsAny(lower, []string{"pending", "todo"}):
				in.StatusFilter = domain.TaskPending
			case containsAny(lower, []string{"completed", "done"}):
				in.StatusFilter = domain.TaskCompleted
			}
			return in
		}),
		regexRule(string(domain.TaskUpdate), []string{
			`update (?:task )?(.+?) (?:to|with) (.+)`,
			`change (?:task )?(.+?) (?:to|with) (.+)`,
			`modify (?:task )?(.+?) (?:to|with) (.+)`,
		}, func(m []string) domain.Intent {
			return domain.TaskIntent{Action: domain.TaskUpdate, Identifier: group(m, 1), NewValue: group(m, 2)}
		}),
		phraseRule(string(domain.TaskPrioritize), []string{
			"prioritize", "priority", "organize tasks", "sort tasks",
		}, func(_, _ string) domain.Intent {
			return domain.TaskIntent{Action: domain.TaskPrioritize}
		}),
	}
}
