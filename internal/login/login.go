// Package login implements the inspector login stub: an arithmetic captcha
// plus a credential check against configured values.
package login

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	minOperand = 1
	maxOperand = 10

	DefaultTTL = 5 * time.Minute

	// DefaultMaxPending bounds outstanding challenges; the oldest is
	// evicted first.
	DefaultMaxPending = 1024
)

var (
	ErrUnknownChallenge = errors.New("unknown or expired captcha challenge")
	ErrWrongAnswer      = errors.New("incorrect captcha answer")
	ErrBadCredentials   = errors.New("invalid username or password")
)

// Challenge is what the client shows to the user.
type Challenge struct {
	ID        string    `json:"id"`
	Question  string    `json:"question"`
	ExpiresAt time.Time `json:"expires_at"`
}

type pending struct {
	answer    int
	expiresAt time.Time
}

// Captcha issues single-use addition challenges.
type Captcha struct {
	mu      sync.Mutex
	pending map[string]pending
	order   []string // issue order; expiry order too since ttl is fixed
	max     int
	ttl     time.Duration
	rnd     *rand.Rand
	now     func() time.Time
}

func NewCaptcha() *Captcha {
	return &Captcha{
		pending: make(map[string]pending),
		max:     DefaultMaxPending,
		ttl:     DefaultTTL,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
		now:     time.Now,
	}
}

// New creates a challenge "a + b" with both operands in 1..10.
func (c *Captcha) New() Challenge {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.sweepLocked(now)

	a := minOperand + c.rnd.Intn(maxOperand-minOperand+1)
	b := minOperand + c.rnd.Intn(maxOperand-minOperand+1)
	ch := Challenge{
		ID:        uuid.NewString(),
		Question:  fmt.Sprintf("%d + %d", a, b),
		ExpiresAt: now.Add(c.ttl),
	}
	c.pending[ch.ID] = pending{answer: a + b, expiresAt: ch.ExpiresAt}
	c.order = append(c.order, ch.ID)
	return ch
}

// Verify consumes the challenge whether or not the answer is right.
func (c *Captcha) Verify(id string, answer int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.pending[id]
	if !ok {
		return ErrUnknownChallenge
	}
	delete(c.pending, id)
	if c.now().After(p.expiresAt) {
		return ErrUnknownChallenge
	}
	if p.answer != answer {
		return ErrWrongAnswer
	}
	return nil
}

// Pending returns how many challenges are outstanding.
func (c *Captcha) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// sweepLocked drops expired challenges from the front of the queue and
// makes room for one more. Verified ids are already gone from the map.
func (c *Captcha) sweepLocked(now time.Time) {
	for len(c.order) > 0 {
		id := c.order[0]
		p, ok := c.pending[id]
		if ok && !now.After(p.expiresAt) && len(c.order) < c.max {
			break
		}
		delete(c.pending, id)
		c.order = c.order[1:]
	}
}

// CheckCredentials compares against the configured pair. An empty configured
// username disables login entirely.
func CheckCredentials(wantUser, wantPass, user, pass string) error {
	if wantUser == "" {
		return ErrBadCredentials
	}
	userOK := subtle.ConstantTimeCompare([]byte(user), []byte(wantUser)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(wantPass)) == 1
	if !userOK || !passOK {
		return ErrBadCredentials
	}
	return nil
}
