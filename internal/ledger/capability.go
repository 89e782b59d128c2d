package ledger

import (
	"context"
	"fmt"
)

// CapabilityKind tags a Capability.
type CapabilityKind int

const (
	// CapabilityUnsponsored submits a normal fee-bearing write.
	CapabilityUnsponsored CapabilityKind = iota
	// CapabilitySponsored submits through a paymaster.
	CapabilitySponsored
)

func (k CapabilityKind) String() string {
	switch k {
	case CapabilitySponsored:
		return "sponsored"
	case CapabilityUnsponsored:
		return "unsponsored"
	default:
		return fmt.Sprintf("CapabilityKind(%d)", int(k))
	}
}

// Capability describes whether the current account can submit fee-less
// writes. URL is set only for CapabilitySponsored.
type Capability struct {
	Kind CapabilityKind
	URL  string
}

// Sponsored returns a capability backed by the paymaster at url.
func Sponsored(url string) Capability {
	return Capability{Kind: CapabilitySponsored, URL: url}
}

// Unsponsored returns the fee-bearing fallback capability.
func Unsponsored() Capability {
	return Capability{Kind: CapabilityUnsponsored}
}

// Options returns the WriteOptions for c.
func (c Capability) Options() WriteOptions {
	if c.Kind == CapabilitySponsored {
		return WriteOptions{Sponsor: c.URL}
	}
	return WriteOptions{}
}

// CapabilityLookup probes the execution environment for a player.
type CapabilityLookup interface {
	Capability(ctx context.Context, playerID string) (Capability, error)
}

// StaticCapability reports Sponsored when PaymasterURL is set.
type StaticCapability struct {
	PaymasterURL string
}

func (s StaticCapability) Capability(context.Context, string) (Capability, error) {
	if s.PaymasterURL == "" {
		return Unsponsored(), nil
	}
	return Sponsored(s.PaymasterURL), nil
}

// CapabilityFunc adapts a function to CapabilityLookup.
type CapabilityFunc func(ctx context.Context, playerID string) (Capability, error)

func (f CapabilityFunc) Capability(ctx context.Context, playerID string) (Capability, error) {
	return f(ctx, playerID)
}
