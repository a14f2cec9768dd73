package addons

import (
	"fmt"
	"net"
)

// PoolRange derives the load-balancer address pool from a node address.
// The third octet is aligned down to a 16-address block boundary and the
// top of that block carries the pool: for a node at a.b.c.d the pool is
// a.b.((c & 0xF0)+15).240 through .250.
func PoolRange(nodeIP string) (start, end string, err error) {
	ip := net.ParseIP(nodeIP)
	if ip == nil || ip.To4() == nil {
		return "", "", fmt.Errorf("invalid IPv4 address %q", nodeIP)
	}
	v4 := ip.To4()

	third := (v4[2] & 0xF0) + 15
	start = fmt.Sprintf("%d.%d.%d.240", v4[0], v4[1], third)
	end = fmt.Sprintf("%d.%d.%d.250", v4[0], v4[1], third)
	return start, end, nil
}
