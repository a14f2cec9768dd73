// Package naming provides consistent naming functions for cluster VMs.
//
// Node VMs follow the pattern {cluster}-{role}-{NN}. The numeric suffix is
// computed as max(existing suffixes for that role) + 1 over the VMs that
// currently exist, so a deleted node's number is never recycled as long as
// a higher-numbered sibling remains.
package naming
