package ansible

import (
	"regexp"
	"strconv"
	"strings"
)

var recapRow = regexp.MustCompile(`^(\S+)\s*:\s*ok=\d+.*`)
var recapCounter = regexp.MustCompile(`(unreachable|failed)=(\d+)`)

// SummarizeFailures extracts the task failures and the failing PLAY RECAP rows
// from ansible-playbook output. It returns "" when nothing recognisable is
// found, in which case callers fall back to the raw output tail.
func SummarizeFailures(output string) string {
	var (
		failures []string
		recap    []string
		inRecap  bool
	)

	for _, raw := range strings.Split(output, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "PLAY RECAP") {
			inRecap = true
			continue
		}
		if inRecap {
			if recapRow.MatchString(line) && recapFailed(line) {
				recap = append(recap, line)
			}
			continue
		}
		switch {
		case strings.HasPrefix(line, "fatal:"),
			strings.HasPrefix(line, "failed:"),
			strings.Contains(line, "UNREACHABLE!"),
			strings.HasPrefix(line, "ERROR!"):
			failures = append(failures, line)
		}
	}

	if len(recap) > 0 {
		failures = append(failures, "PLAY RECAP:")
		failures = append(failures, recap...)
	}
	return strings.Join(failures, "\n")
}

func recapFailed(line string) bool {
	for _, m := range recapCounter.FindAllStringSubmatch(line, -1) {
		if n, err := strconv.Atoi(m[2]); err == nil && n > 0 {
			return true
		}
	}
	return false
}
