package cmdHandlers

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/ilinovom/feedbot/internal/logger"
)

// Allowlist answers whether a user may talk to the bot. The file holds one
// numeric user id per line and is re-read on every check, so edits apply
// without a restart.
type Allowlist struct {
	path string
}

func NewAllowlist(path string) *Allowlist {
	return &Allowlist{path: path}
}

// Allowed reports whether userID is listed. A missing or unreadable file
// refuses everyone.
func (a *Allowlist) Allowed(userID int64) bool {
	f, err := os.Open(a.path)
	if err != nil {
		logger.Errorf("allow-list %s: %v", a.path, err)
		return false
	}
	defer f.Close()

	id := strconv.FormatInt(userID, 10)
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) == id {
			return true
		}
	}
	if err := sc.Err(); err != nil {
		logger.Errorf("allow-list %s: %v", a.path, err)
	}
	return false
}
