package prioritizer

import (
	"fmt"
	"strings"
	"time"

	"github.com/BuzzLyutic/task-prioritizer/internal/model"
)

const (
	noRulesText     = "No specific rules provided"
	promptTimestamp = "2006-01-02 15:04:05 -0700"
)

// BuildPrompt renders the ranking request. Completed tasks are left out.
func BuildPrompt(tasks []model.Task, rules []string, now time.Time) string {
	var b strings.Builder

	b.WriteString("Here is a list of tasks:\n\"\"\"\n")
	for _, t := range tasks {
		if !t.Rankable() {
			continue
		}
		fmt.Fprintf(&b, "- Task ID %d: %s (Status: %s)\n", t.ID, t.Description, t.Status)
	}
	b.WriteString("\"\"\"\n\n")

	b.WriteString("Here is the prioritization statement describing how to rank them:\n\"\"\"\n")
	if len(rules) == 0 {
		b.WriteString(noRulesText)
		b.WriteString("\n")
	}
	for _, r := range rules {
		b.WriteString("- ")
		b.WriteString(r)
		b.WriteString("\n")
	}
	b.WriteString("\"\"\"\n\n")

	b.WriteString("Current timestamp: ")
	b.WriteString(now.Format(promptTimestamp))
	b.WriteString("\n\n")

	b.WriteString("Rank the tasks according to the prioritization statement. ")
	b.WriteString("Assign every task a priority from 1 (most important) to 10 (least important) ")
	b.WriteString("and explain each assignment. Do not change the task descriptions. ")
	b.WriteString("Answer only through the " + toolName + " tool.")

	return b.String()
}
