package reactor

import "fmt"

// UserCredentials identifies the principal a client connection negotiated
// as. It is reduced to a single comparable string so ConnectionId can be
// used as a map key without a custom Equal/Hash pair.
type UserCredentials string

// ConnectionId identifies one logical client connection slot: a remote
// endpoint, the credentials negotiated for it, and an index in
// [0, num_connections_to_server) that multiplexes several parallel
// connections to the same peer. All three fields participate in equality.
type ConnectionId struct {
	Remote      string // net.Addr.String() of the peer
	Credentials UserCredentials
	Index       int
}

// NewConnectionId builds a ConnectionId from a dial target, credentials and
// a multiplexing index chosen by the caller (the reactor never picks one
// itself, per the outbound-dispatch design).
func NewConnectionId(remote string, creds UserCredentials, index int) ConnectionId {
	return ConnectionId{Remote: remote, Credentials: creds, Index: index}
}

func (id ConnectionId) String() string {
	return fmt.Sprintf("%s/%s/%d", id.Remote, id.Credentials, id.Index)
}
