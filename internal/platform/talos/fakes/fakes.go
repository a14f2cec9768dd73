// Package fakes provides an in-memory Talos API implementation for tests.
package fakes

import (
	"context"
	"errors"
	"sync"

	"github.com/talhyve/talhyve/internal/platform/talos"
)

var _ talos.API = (*FakeTalos)(nil)

var errNotReady = errors.New("connection refused")

// FakeTalos records applied configs and simulates node readiness.
type FakeTalos struct {
	mu sync.Mutex

	// AppliedConfigs maps node IP to the last config pushed to it.
	AppliedConfigs map[string][]byte
	BootstrapCalls []string
	PingCalls      []string

	// PingFailures makes Ping fail this many times per node before
	// succeeding, simulating the install reboot window.
	PingFailures int
	pingSeen     map[string]int

	// Members is returned by EtcdMembers.
	Members []string

	// KubeconfigData is returned by Kubeconfig.
	KubeconfigData []byte

	// Fail injects an error for the named operation ("apply", "bootstrap",
	// "ping", "etcd", "kubeconfig").
	Fail map[string]error
}

// New returns an empty fake Talos API.
func New() *FakeTalos {
	return &FakeTalos{
		AppliedConfigs: make(map[string][]byte),
		pingSeen:       make(map[string]int),
		KubeconfigData: []byte("apiVersion: v1\nkind: Config\n"),
	}
}

func (f *FakeTalos) failFor(op string) error {
	if f.Fail == nil {
		return nil
	}
	return f.Fail[op]
}

func (f *FakeTalos) ApplyConfigInsecure(_ context.Context, nodeIP string, configData []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor("apply"); err != nil {
		return err
	}
	f.AppliedConfigs[nodeIP] = append([]byte(nil), configData...)
	return nil
}

func (f *FakeTalos) Bootstrap(_ context.Context, nodeIP string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor("bootstrap"); err != nil {
		return err
	}
	f.BootstrapCalls = append(f.BootstrapCalls, nodeIP)
	return nil
}

func (f *FakeTalos) Ping(_ context.Context, nodeIP string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.PingCalls = append(f.PingCalls, nodeIP)
	if err := f.failFor("ping"); err != nil {
		return err
	}
	f.pingSeen[nodeIP]++
	if f.pingSeen[nodeIP] <= f.PingFailures {
		return errNotReady
	}
	return nil
}

func (f *FakeTalos) EtcdMembers(_ context.Context, _ string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor("etcd"); err != nil {
		return nil, err
	}
	return append([]string(nil), f.Members...), nil
}

func (f *FakeTalos) Kubeconfig(_ context.Context, _ string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failFor("kubeconfig"); err != nil {
		return nil, err
	}
	return append([]byte(nil), f.KubeconfigData...), nil
}
