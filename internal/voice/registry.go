package voice

import (
	"github.com/rs/zerolog"
)

// Registry is the keyed store of peer links, exactly one per participant
// pair. It is owned by the coordinator and only mutated on its event turn.
type Registry struct {
	localUserID string
	factory     ConnFactory

	// active gates creation: no link may exist outside an active voice
	// session. Called under the coordinator's lock.
	active func() bool

	links map[LinkKey]*PeerLink
	log   zerolog.Logger
}

// NewRegistry creates an empty registry for the given local participant.
func NewRegistry(localUserID string, factory ConnFactory, active func() bool, log zerolog.Logger) *Registry {
	return &Registry{
		localUserID: localUserID,
		factory:     factory,
		active:      active,
		links:       make(map[LinkKey]*PeerLink),
		log:         log,
	}
}

// GetOrCreate returns the link for the pair (local, remote), constructing a
// fresh connection when none exists. A second request for an existing key
// returns the existing link unchanged, Initiator flag included: whichever
// side's creation won the race keeps it. While no session is active the
// call is a defensive no-op returning nil, since races between teardown and
// inbound signaling are expected.
func (r *Registry) GetOrCreate(remoteUserID string, initiator bool) (*PeerLink, bool, error) {
	if !r.active() {
		r.log.Debug().Str("remote", remoteUserID).Msg("ignoring link creation, session inactive")
		return nil, false, nil
	}

	key := KeyFor(r.localUserID, remoteUserID)
	if link, ok := r.links[key]; ok {
		r.log.Debug().Str("key", string(key)).Msg("peer link already exists")
		return link, false, nil
	}

	conn, err := r.factory()
	if err != nil {
		return nil, false, peerErr("create link", remoteUserID, err)
	}

	link := &PeerLink{
		Key:          key,
		RemoteUserID: remoteUserID,
		Initiator:    initiator,
		conn:         conn,
		state:        StateUnconnected,
	}
	r.links[key] = link

	r.log.Debug().Str("key", string(key)).Bool("initiator", initiator).Msg("peer link created")
	return link, true, nil
}

// Get returns the link for the pair (local, remote), or nil.
func (r *Registry) Get(remoteUserID string) *PeerLink {
	return r.links[KeyFor(r.localUserID, remoteUserID)]
}

// Remove closes the link's connection and deletes the entry. Removing an
// absent or already-closed link is a no-op.
func (r *Registry) Remove(remoteUserID string) bool {
	key := KeyFor(r.localUserID, remoteUserID)
	link, ok := r.links[key]
	if !ok {
		return false
	}

	link.setState(StateClosed)
	if err := link.conn.Close(); err != nil {
		r.log.Warn().Err(err).Str("key", string(key)).Msg("error closing peer link")
	}
	delete(r.links, key)
	return true
}

// Clear closes and removes every link. Used only during full session
// teardown.
func (r *Registry) Clear() {
	for key, link := range r.links {
		link.setState(StateClosed)
		if err := link.conn.Close(); err != nil {
			r.log.Warn().Err(err).Str("key", string(key)).Msg("error closing peer link")
		}
		delete(r.links, key)
	}
}

// Remotes returns the remote participant IDs with a live link.
func (r *Registry) Remotes() []string {
	ids := make([]string, 0, len(r.links))
	for _, link := range r.links {
		ids = append(ids, link.RemoteUserID)
	}
	return ids
}

// Len returns the number of live links.
func (r *Registry) Len() int {
	return len(r.links)
}
