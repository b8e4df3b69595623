// Package resolver implements the stream-host resolution algorithm of
// spec.md §4.5: turning a target JID into an ordered list of candidate
// stream hosts by walking the target's feature support, the service's
// proxy items, and each candidate's identities and advertised address.
package resolver

import (
	"context"
	"log/slog"

	"github.com/ge0rg/bytestream5/internal/bsmetrics"
	"github.com/ge0rg/bytestream5/internal/discovery"
	"github.com/ge0rg/bytestream5/internal/proxycache"
	"github.com/ge0rg/bytestream5/pkg/bserror"
	"github.com/ge0rg/bytestream5/pkg/bslog"
	"github.com/ge0rg/bytestream5/pkg/bytestream"
	"github.com/ge0rg/bytestream5/pkg/jid"
)

// StreamHostInfoFetcher performs the bytestream GET that returns a
// candidate proxy's advertised (address, port). Like discovery.Requester,
// this is an external-transport capability interface exercised by a
// fake in tests.
type StreamHostInfoFetcher interface {
	StreamHostInfo(ctx context.Context, proxy jid.JID) (addr string, port int, err error)
}

// LocalHostSource supplies the locally-advertised stream host addresses
// and port, satisfied by *localproxy.Proxy in production.
type LocalHostSource interface {
	LocalAddresses() []string
	Port() int
}

// Config toggles the two resolution-ordering behaviors of spec.md §4.5/§4.6.
type Config struct {
	AnnounceLocalStreamHost bool
	PrioritizationEnabled   bool
}

// Resolve runs the full stream-host resolution algorithm described in
// spec.md §4.5 and returns the ordered candidate list, or an error if the
// target lacks the feature, discovery fails outright, or the final list
// is empty.
func Resolve(
	ctx context.Context,
	gw discovery.Gateway,
	fetcher StreamHostInfoFetcher,
	store proxycache.Store,
	local LocalHostSource,
	initiator jid.JID,
	serviceJID jid.JID,
	target jid.JID,
	cfg Config,
) ([]bytestream.StreamHost, error) {
	supported, err := gw.Supports(ctx, target, bytestream.FeatureNamespace)
	if err != nil {
		return nil, err
	}
	if !supported {
		return nil, &bserror.FeatureNotSupportedError{Feature: bytestream.FeatureLabel, JID: target}
	}

	items, err := gw.Items(ctx, serviceJID)
	if err != nil {
		return nil, err
	}

	candidates := dedupe(items)

	var remote []bytestream.StreamHost
	for _, candidate := range candidates {
		blacklisted, err := store.IsBlacklisted(ctx, candidate.JID)
		if err != nil {
			return nil, err
		}
		if blacklisted {
			continue
		}

		identities, err := gw.Identities(ctx, candidate.JID)
		bsmetrics.RecordIdentityProbe()
		if err != nil {
			bslog.Warn("candidate identity probe failed, skipping for this attempt", slog.String("error", err.Error()))
			continue
		}

		if !discovery.IsProxy(identities) {
			if err := store.Blacklist(ctx, candidate.JID); err != nil {
				return nil, err
			}
			bsmetrics.RecordBlacklistAddition()
			continue
		}

		addr, port, err := fetcher.StreamHostInfo(ctx, candidate.JID)
		if err != nil {
			bslog.Warn("stream-host-info lookup failed, treating candidate as non-viable for this attempt", slog.String("error", err.Error()))
			continue
		}

		remote = append(remote, bytestream.StreamHost{JID: candidate.JID, Address: addr, Port: port})
	}

	if cfg.PrioritizationEnabled {
		if last, ok, err := store.LastSuccess(ctx); err == nil && ok {
			reordered := prioritize(remote, last)
			if len(reordered) > 0 && len(remote) > 0 && !reordered[0].JID.Equal(remote[0].JID) {
				bsmetrics.RecordPriorityCacheHit()
			}
			remote = reordered
		}
	}

	var hosts []bytestream.StreamHost
	if cfg.AnnounceLocalStreamHost {
		port := local.Port()
		for _, addr := range local.LocalAddresses() {
			hosts = append(hosts, bytestream.StreamHost{JID: initiator, Address: addr, Port: port})
		}
	}
	hosts = append(hosts, remote...)

	if len(hosts) == 0 {
		return nil, &bserror.NoProxiesAvailableError{}
	}
	return hosts, nil
}

// dedupe preserves the first occurrence of each distinct JID among items.
func dedupe(items []discovery.Item) []discovery.Item {
	seen := make(map[string]bool, len(items))
	out := make([]discovery.Item, 0, len(items))
	for _, it := range items {
		key := it.JID.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}

// prioritize moves the entry whose JID matches winner to the front of
// hosts, preserving the relative order of everything else.
func prioritize(hosts []bytestream.StreamHost, winner jid.JID) []bytestream.StreamHost {
	idx := -1
	for i, h := range hosts {
		if h.JID.Equal(winner) {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return hosts
	}
	out := make([]bytestream.StreamHost, 0, len(hosts))
	out = append(out, hosts[idx])
	out = append(out, hosts[:idx]...)
	out = append(out, hosts[idx+1:]...)
	return out
}
