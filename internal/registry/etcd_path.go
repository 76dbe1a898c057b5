package registry

import (
	"fmt"
	"strings"
)

func lockKey(prefix, key string) string {
	return fmt.Sprintf("%s/locks/%s", strings.TrimRight(prefix, "/"), key)
}

func unitsPrefix(prefix string) string {
	return fmt.Sprintf("%s/units/", strings.TrimRight(prefix, "/"))
}

func recordKey(prefix, unit, container string) string {
	return unitsPrefix(prefix) + unit + "/" + container
}
