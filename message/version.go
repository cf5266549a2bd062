package message

import "github.com/pkg/errors"

// ProtocolVersion is stamped on every envelope this library produces.
const ProtocolVersion = "1.0.0"

var ErrVersionMismatch = errors.New("protocol version mismatch")

// CheckVersion compares a peer's protocol version with ours. A mismatch is
// never fatal: callers log it and keep processing the message.
func CheckVersion(peer string) error {
	if peer == ProtocolVersion {
		return nil
	}
	return errors.Wrapf(ErrVersionMismatch, "peer speaks %q, local is %q", peer, ProtocolVersion)
}
