package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Timeouts collects the bound and interval of every poll loop, plus the
// fixed settle delays between lifecycle steps. All five wait points
// (address, boot, health, join, etcd) are fixed-interval deadline polls.
type Timeouts struct {
	// MAC discovery: the neighbor table only links a VM to an address once
	// the guest network stack is up, so the MAC wait runs first and fails
	// distinctly from the address wait.
	MACWait time.Duration `yaml:"macWait"`
	MACPoll time.Duration `yaml:"macPoll"`

	// IPv4 discovery from the host neighbor table.
	AddressWait time.Duration `yaml:"addressWait"`
	AddressPoll time.Duration `yaml:"addressPoll"`

	// Talos API availability after a (re)boot.
	BootWait time.Duration `yaml:"bootWait"`
	BootPoll time.Duration `yaml:"bootPoll"`

	// Cluster health convergence after bootstrap. Non-fatal on expiry.
	HealthWait time.Duration `yaml:"healthWait"`
	HealthPoll time.Duration `yaml:"healthPoll"`

	// Kubernetes node join after configuration. Non-fatal on expiry unless
	// strictJoin is set.
	JoinWait time.Duration `yaml:"joinWait"`
	JoinPoll time.Duration `yaml:"joinPoll"`

	// Drain bound for worker removal.
	Drain time.Duration `yaml:"drain"`

	// InstallSettle is the delay after config apply before the boot media
	// is ejected and the VM power-cycled: config application triggers the
	// installer's write to the persistent disk first.
	InstallSettle time.Duration `yaml:"installSettle"`

	// EtcdSettle is the delay before the etcd membership check, covering
	// member-list sync lag.
	EtcdSettle time.Duration `yaml:"etcdSettle"`
}

// UnmarshalYAML decodes durations from Go duration strings ("60s", "5m").
func (t *Timeouts) UnmarshalYAML(value *yaml.Node) error {
	raw := map[string]string{}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	for key, dst := range t.fields() {
		s, ok := raw[key]
		if !ok || s == "" {
			continue
		}
		d, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("timeouts.%s: invalid duration %q: %w", key, s, err)
		}
		*dst = d
	}
	return nil
}

func (t *Timeouts) fields() map[string]*time.Duration {
	return map[string]*time.Duration{
		"macWait":       &t.MACWait,
		"macPoll":       &t.MACPoll,
		"addressWait":   &t.AddressWait,
		"addressPoll":   &t.AddressPoll,
		"bootWait":      &t.BootWait,
		"bootPoll":      &t.BootPoll,
		"healthWait":    &t.HealthWait,
		"healthPoll":    &t.HealthPoll,
		"joinWait":      &t.JoinWait,
		"joinPoll":      &t.JoinPoll,
		"drain":         &t.Drain,
		"installSettle": &t.InstallSettle,
		"etcdSettle":    &t.EtcdSettle,
	}
}

// ApplyDefaults fills unset durations with the documented defaults.
func (t *Timeouts) ApplyDefaults() {
	def := func(d *time.Duration, v time.Duration) {
		if *d == 0 {
			*d = v
		}
	}
	def(&t.MACWait, 30*time.Second)
	def(&t.MACPoll, 2*time.Second)
	def(&t.AddressWait, 180*time.Second)
	def(&t.AddressPoll, 5*time.Second)
	def(&t.BootWait, 300*time.Second)
	def(&t.BootPoll, 10*time.Second)
	def(&t.HealthWait, 300*time.Second)
	def(&t.HealthPoll, 15*time.Second)
	def(&t.JoinWait, 300*time.Second)
	def(&t.JoinPoll, 10*time.Second)
	def(&t.Drain, 300*time.Second)
	def(&t.InstallSettle, 90*time.Second)
	def(&t.EtcdSettle, 15*time.Second)
}
