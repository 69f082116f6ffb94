package hub

import (
	"fmt"
	"time"

	"github.com/cwrk-planet/realtime-service/internal/domain"
)

// Conn — адресуемый конец соединения. Send не должен блокироваться.
type Conn interface {
	ID() string
	Send(frame []byte) error
	Close() error
}

type entry struct {
	conn        Conn
	identity    domain.Identity
	connectedAt time.Time
}

// registry — Connection Registry. Не потокобезопасен: принадлежит горутине Hub.
type registry struct {
	conns map[string]*entry
}

func newRegistry() *registry {
	return &registry{conns: make(map[string]*entry)}
}

// register отклоняет дубликат id детерминированно.
func (r *registry) register(c Conn, id domain.Identity, now time.Time) (*entry, error) {
	if _, ok := r.conns[c.ID()]; ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrConnectionExists, c.ID())
	}
	e := &entry{conn: c, identity: id, connectedAt: now}
	r.conns[c.ID()] = e
	return e, nil
}

func (r *registry) lookup(connID string) (*entry, error) {
	e, ok := r.conns[connID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownConnection, connID)
	}
	return e, nil
}

func (r *registry) deregister(connID string) (*entry, bool) {
	e, ok := r.conns[connID]
	if ok {
		delete(r.conns, connID)
	}
	return e, ok
}

func (r *registry) len() int { return len(r.conns) }
