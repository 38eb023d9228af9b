package plan

import "strings"

// MergeCrontab adds entry to a crontab table. Lines running the same command as
// the entry are replaced so merging is idempotent, the rest of the table is kept.
func MergeCrontab(table, entry string) string {
	entry = strings.TrimSpace(entry)
	command := cronCommand(entry)

	lines := []string{}
	for _, line := range strings.Split(table, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == entry {
			continue
		}
		if command != "" && !strings.HasPrefix(trimmed, "#") && cronCommand(trimmed) == command {
			continue
		}
		lines = append(lines, line)
	}

	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	lines = append(lines, entry)

	return strings.Join(lines, "\n") + "\n"
}

// cronCommand returns the command part of a crontab line, empty for lines that
// are not jobs (comments and variables).
func cronCommand(line string) string {
	if line == "" || strings.HasPrefix(line, "#") {
		return ""
	}

	fields := strings.Fields(line)
	switch {
	case strings.HasPrefix(fields[0], "@") && len(fields) > 1:
		return strings.Join(fields[1:], " ")
	case len(fields) > 5:
		return strings.Join(fields[5:], " ")
	}
	return ""
}
