package chainstore

import (
	"sort"

	"github.com/blockvault/chainstore/codec"
	"github.com/blockvault/chainstore/kv"
)

// PeerDiscovery is the collaborator-exposed view returning candidate peer
// addresses to a network layer outside this module.
type PeerDiscovery interface {
	GetConnectablePeers() ([]codec.KnownPeer, error)
}

// PeerSink is the collaborator-exposed view accepting observed peer
// records from a network layer outside this module.
type PeerSink interface {
	StorePeer(p codec.KnownPeer) error
}

// StorePeer persists an observed peer record. Like block insertion, this
// is a serialized write and is refused once the engine is tainted.
func (e *Engine) StorePeer(p codec.KnownPeer) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.tainted {
		return newErrf(KindStorageFault, "store-peer", "engine refuses further writes after a prior commit failure; reopen to continue")
	}
	if err := e.store.Put(kv.PeerKey(p.Address), codec.EncodeKnownPeer(p)); err != nil {
		return storageErr("store-peer", err)
	}
	return nil
}

// FindPeer looks up a known peer by address.
func (e *Engine) FindPeer(address string) (codec.KnownPeer, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	raw, ok, err := e.store.Get(kv.PeerKey(address))
	if err != nil {
		return codec.KnownPeer{}, storageErr("find-peer", err)
	}
	if !ok {
		return codec.KnownPeer{}, newErrf(KindNotFound, "find-peer", "peer %q not found", address)
	}
	p, err := codec.DecodeKnownPeer(raw)
	if err != nil {
		return codec.KnownPeer{}, asNotFound("find-peer", err)
	}
	return p, nil
}

// GetConnectablePeers scans the PEER discriminant (the correct behavior —
// spec.md §9's documented defect of scanning TX instead is deliberately
// not reproduced here) and returns peers whose ban-until has passed,
// ordered by (preference, last-response-time) ascending.
func (e *Engine) GetConnectablePeers() ([]codec.KnownPeer, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	entries, err := e.store.ScanPrefix(kv.TagPeer.Prefix(), kv.Forward)
	if err != nil {
		return nil, storageErr("get-connectable-peers", err)
	}
	now := e.clock()
	out := make([]codec.KnownPeer, 0, len(entries))
	for _, entry := range entries {
		p, err := codec.DecodeKnownPeer(entry.Value)
		if err != nil {
			continue // a corrupt peer record is skipped, not fatal, per read-path CodecError policy
		}
		if p.BanUntil >= now {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Preference != out[j].Preference {
			return out[i].Preference < out[j].Preference
		}
		return out[i].LastResponse < out[j].LastResponse
	})
	return out, nil
}
