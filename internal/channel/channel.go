// Package channel defines the typed keys that name broadcast scopes.
//
// The wire form is "room:<id>", "bubble:<id>" or "doc:<id>". Parsing it
// into a Kind + numeric ID once, at the edge, means the rest of the
// system switches on a typed variant instead of sniffing string
// prefixes — handing a doc key to the chat path is a validation error,
// not a silent misroute.
package channel

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind discriminates the three scope variants.
type Kind string

const (
	// KindRoom is the room-wide chat scope.
	KindRoom Kind = "room"
	// KindBubble is the small-group chat scope.
	KindBubble Kind = "bubble"
	// KindDoc is a collaborative-editing session keyed by artifact id.
	KindDoc Kind = "doc"
)

// Key identifies one broadcast scope. A Key has no storage of its own;
// it is purely a routing label.
type Key struct {
	Kind Kind
	ID   int64
}

// Parse converts the wire form into a Key. Anything that is not one of
// the three known kinds with a positive numeric id is rejected.
func Parse(s string) (Key, error) {
	kindStr, idStr, ok := strings.Cut(s, ":")
	if !ok {
		return Key{}, fmt.Errorf("malformed channel key %q: want <kind>:<id>", s)
	}

	kind := Kind(kindStr)
	switch kind {
	case KindRoom, KindBubble, KindDoc:
	default:
		return Key{}, fmt.Errorf("unknown channel kind %q", kindStr)
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return Key{}, fmt.Errorf("invalid channel id %q", idStr)
	}

	return Key{Kind: kind, ID: id}, nil
}

// ParseChat is Parse restricted to the two chat scopes. Document keys
// are rejected so chat events can never land on an editing session.
func ParseChat(s string) (Key, error) {
	key, err := Parse(s)
	if err != nil {
		return Key{}, err
	}
	if key.Kind == KindDoc {
		return Key{}, fmt.Errorf("channel %q is a document scope, not a chat scope", s)
	}
	return key, nil
}

// Room builds the key for a room-wide chat.
func Room(id int64) Key { return Key{Kind: KindRoom, ID: id} }

// Bubble builds the key for a small-group chat.
func Bubble(id int64) Key { return Key{Kind: KindBubble, ID: id} }

// Doc builds the key for a collaborative-editing session.
func Doc(artifactID int64) Key { return Key{Kind: KindDoc, ID: artifactID} }

// String returns the wire form.
func (k Key) String() string {
	return string(k.Kind) + ":" + strconv.FormatInt(k.ID, 10)
}

// IsChat reports whether the key names a room or bubble chat.
func (k Key) IsChat() bool {
	return k.Kind == KindRoom || k.Kind == KindBubble
}

// MarshalText lets a Key travel inside JSON event payloads in its wire
// form.
func (k Key) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses the wire form.
func (k *Key) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
