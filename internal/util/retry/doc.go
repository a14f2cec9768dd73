// Package retry implements the fixed-interval polling primitive used by
// every wait point in the provisioning flows: address discovery, API boot,
// cluster health, node join, and etcd membership checks.
package retry
