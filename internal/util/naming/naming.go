package naming

import (
	"fmt"
	"strconv"
	"strings"
)

// Node roles.
const (
	RoleControlPlane = "control-plane"
	RoleWorker       = "worker"
)

// Node returns the VM name for a node: {cluster}-{role}-{NN}.
func Node(cluster, role string, index int) string {
	return fmt.Sprintf("%s-%s-%02d", cluster, role, index)
}

// Prefix returns the name prefix shared by all VMs of a cluster.
func Prefix(cluster string) string {
	return cluster + "-"
}

// BelongsTo reports whether name is a VM of the given cluster.
func BelongsTo(name, cluster string) bool {
	return strings.HasPrefix(name, Prefix(cluster))
}

// ParseNode splits a VM name into role and numeric suffix.
// Role names contain hyphens, so parsing tries the known roles rather than
// splitting on the separator.
func ParseNode(name, cluster string) (role string, index int, ok bool) {
	for _, r := range []string{RoleControlPlane, RoleWorker} {
		prefix := fmt.Sprintf("%s-%s-", cluster, r)
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(name, prefix))
		if err != nil || n < 0 {
			return "", 0, false
		}
		return r, n, true
	}
	return "", 0, false
}

// NextIndex computes the suffix for the next node of a role given the names
// of currently existing VMs: max existing suffix + 1, starting at 1.
// Gaps left by deleted nodes are never backfilled because only existing VMs
// are scanned.
func NextIndex(existing []string, cluster, role string) int {
	max := 0
	for _, name := range existing {
		r, n, ok := ParseNode(name, cluster)
		if !ok || r != role {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max + 1
}
