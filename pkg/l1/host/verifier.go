package host

import (
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/robotalks/nfcreg/pkg/l0/comm"
)

// Verifier decides whether a tag opens the register.
type Verifier interface {
	Verify(uid []byte) bool
}

// VerifyFunc is func type of Verifier.
type VerifyFunc func([]byte) bool

// Verify implements Verifier.
func (f VerifyFunc) Verify(uid []byte) bool {
	return f(uid)
}

// ParseUID parses a tag UID written as hex, with an optional 0x prefix
// and optional ':' or '-' separators, e.g. "0xDEADBEEF" or "de:ad:be:ef".
func ParseUID(s string) ([]byte, error) {
	str := strings.TrimSpace(s)
	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		str = str[2:]
	}
	str = strings.NewReplacer(":", "", "-", "").Replace(str)
	uid, err := hex.DecodeString(str)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidUID, s, err)
	}
	if len(uid) == 0 || len(uid) > comm.MaxPayloadLen {
		return nil, fmt.Errorf("%w %q: length %d", ErrInvalidUID, s, len(uid))
	}
	return uid, nil
}

// FormatUID renders a UID the way AllowList lists it.
func FormatUID(uid []byte) string {
	return strings.ToUpper(hex.EncodeToString(uid))
}

// AllowList is a Verifier granting a fixed set of UIDs. It is safe for
// concurrent use.
type AllowList struct {
	lock sync.RWMutex
	uids map[string]struct{}
}

// NewAllowList creates an AllowList from UID strings.
func NewAllowList(uids ...string) (*AllowList, error) {
	l := &AllowList{uids: make(map[string]struct{})}
	for _, s := range uids {
		if err := l.Add(s); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Add grants uid.
func (l *AllowList) Add(uid string) error {
	parsed, err := ParseUID(uid)
	if err != nil {
		return err
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.uids == nil {
		l.uids = make(map[string]struct{})
	}
	l.uids[FormatUID(parsed)] = struct{}{}
	return nil
}

// Remove revokes uid and reports whether it was granted.
func (l *AllowList) Remove(uid string) (bool, error) {
	parsed, err := ParseUID(uid)
	if err != nil {
		return false, err
	}
	key := FormatUID(parsed)
	l.lock.Lock()
	defer l.lock.Unlock()
	_, ok := l.uids[key]
	delete(l.uids, key)
	return ok, nil
}

// List returns the granted UIDs, sorted.
func (l *AllowList) List() []string {
	l.lock.RLock()
	uids := make([]string, 0, len(l.uids))
	for uid := range l.uids {
		uids = append(uids, uid)
	}
	l.lock.RUnlock()
	sort.Strings(uids)
	return uids
}

// Verify implements Verifier.
func (l *AllowList) Verify(uid []byte) bool {
	l.lock.RLock()
	defer l.lock.RUnlock()
	_, ok := l.uids[FormatUID(uid)]
	return ok
}
