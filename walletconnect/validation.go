package walletconnect

import (
	"fmt"
	"sync"
)

// WalletConnect clients derive request ids from millisecond timestamps, so
// a well-formed id carries at least 13 decimal digits.
const minRequestID = 1_000_000_000_000

// Validator guards against acting on requests whose identifier is
// malformed, replayed, or not tracked as outstanding. It doubles as the
// request/response correlation registry: inbound requests are tracked here
// and resolved exactly once when a response goes out.
type Validator struct {
	mu          sync.Mutex
	seen        map[string]struct{}
	outstanding map[string]Request
}

func NewValidator() *Validator {
	return &Validator{
		seen:        make(map[string]struct{}),
		outstanding: make(map[string]Request),
	}
}

// ValidateSessionRequestID checks a session-level request id: well-formed
// and never seen before for this topic.
func (v *Validator) ValidateSessionRequestID(topic string, id int64) bool {
	if !wellFormedRequestID(id) {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	key := requestKey(topic, id)
	if _, replayed := v.seen[key]; replayed {
		return false
	}
	v.seen[key] = struct{}{}
	return true
}

// ValidateTransactionRequestID checks a transaction request id: well-formed
// and currently tracked as outstanding.
func (v *Validator) ValidateTransactionRequestID(topic string, id int64) bool {
	if !wellFormedRequestID(id) {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	_, ok := v.outstanding[requestKey(topic, id)]
	return ok
}

// Track registers an inbound request as outstanding, awaiting a response.
func (v *Validator) Track(req Request) {
	v.mu.Lock()
	v.outstanding[requestKey(req.Topic, req.ID)] = req
	v.mu.Unlock()
}

// Resolve removes an outstanding request, returning it. The second return
// is false when no such request is tracked, which means either a stale
// response flow or an id the peer never sent.
func (v *Validator) Resolve(topic string, id int64) (Request, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	key := requestKey(topic, id)
	req, ok := v.outstanding[key]
	if ok {
		delete(v.outstanding, key)
	}
	return req, ok
}

// Outstanding returns the tracked requests for a topic.
func (v *Validator) Outstanding(topic string) []Request {
	v.mu.Lock()
	defer v.mu.Unlock()
	var out []Request
	for _, req := range v.outstanding {
		if req.Topic == topic {
			out = append(out, req)
		}
	}
	return out
}

func wellFormedRequestID(id int64) bool {
	return id >= minRequestID
}

func requestKey(topic string, id int64) string {
	return fmt.Sprintf("%s:%d", topic, id)
}
