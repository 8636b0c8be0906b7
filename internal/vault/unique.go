package vault

import (
	"fmt"
	"path"
	"strings"
)

// UniqueSibling returns the first sibling name of target that occupied
// reports free, in the form "name 1.ext", "name 2.ext", …. target itself is
// returned when it is already free.
func UniqueSibling(target string, occupied func(string) bool) string {
	if !occupied(target) {
		return target
	}
	dir := path.Dir(target)
	base := path.Base(target)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s %d%s", stem, i, ext)
		if dir != "." && dir != "" {
			candidate = dir + "/" + candidate
		}
		if !occupied(candidate) {
			return candidate
		}
	}
}
