// Package access holds the allow-list of identities permitted to use the bot,
// the admin identity, and the admin-managed rclone remote target.
package access

import (
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ErrUsage reports a malformed admin command argument list.
var ErrUsage = errors.New("usage error")

// Roster is process-wide state. It is never persisted.
type Roster struct {
	admin int64

	mu           sync.RWMutex
	members      map[int64]struct{}
	remoteTarget string
}

// NewRoster bootstraps a roster containing only the admin.
func NewRoster(admin int64, remoteTarget string) *Roster {
	return &Roster{
		admin:        admin,
		members:      map[int64]struct{}{admin: {}},
		remoteTarget: remoteTarget,
	}
}

func (r *Roster) Admin() int64 {
	return r.admin
}

func (r *Roster) IsAdmin(id int64) bool {
	return id == r.admin
}

func (r *Roster) IsAuthorized(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[id]
	return ok
}

func (r *Roster) Add(id int64) {
	r.mu.Lock()
	r.members[id] = struct{}{}
	r.mu.Unlock()
}

// Remove drops id from the roster. Removing an absent id is a no-op.
func (r *Roster) Remove(id int64) {
	r.mu.Lock()
	delete(r.members, id)
	r.mu.Unlock()
}

// Members returns the roster sorted ascending.
func (r *Roster) Members() []int64 {
	r.mu.RLock()
	out := make([]int64, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *Roster) RemoteTarget() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.remoteTarget
}

func (r *Roster) SetRemoteTarget(target string) {
	r.mu.Lock()
	r.remoteTarget = target
	r.mu.Unlock()
}

// ParseIdentityArg expects exactly one integer argument.
func ParseIdentityArg(args string) (int64, error) {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return 0, ErrUsage
	}
	id, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, ErrUsage
	}
	return id, nil
}

// ParseRemoteArg expects exactly one non-empty argument.
func ParseRemoteArg(args string) (string, error) {
	fields := strings.Fields(args)
	if len(fields) != 1 {
		return "", ErrUsage
	}
	return fields[0], nil
}
