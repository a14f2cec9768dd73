// Package hyperv wraps the Hyper-V management surface behind narrow,
// mockable interfaces.
//
// Hyper-V has no wire API; its management surface is PowerShell. Every
// operation is a short script executed through a Runner, with structured
// results read back as JSON. The host neighbor (ARP) table is exposed here
// too, since it is the only available MAC-to-IP correlation source for
// DHCP-leased guest addresses.
package hyperv
