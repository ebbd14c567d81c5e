package sandbox

import "strings"

var highRiskPatterns = []string{
	"rm -rf",
	"rm -fr",
	"mkfs",
	"dd if=",
	"shutdown",
	"reboot",
	"userdel",
	"chmod 777 /",
	":(){",
	"> /dev/sd",
}

// HighRisk reports whether command contains a destructive pattern and which.
func HighRisk(command string) (string, bool) {
	low := strings.ToLower(strings.TrimSpace(command))
	for _, pattern := range highRiskPatterns {
		if strings.Contains(low, pattern) {
			return pattern, true
		}
	}
	return "", false
}
