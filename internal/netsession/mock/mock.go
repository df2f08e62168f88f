// Package mock provides a scripted [netsession.Provider] for tests.
package mock

import (
	"context"
	"sync"
)

// Provider joins immediately unless Block is set, in which case Connect
// waits for ctx.
type Provider struct {
	mu sync.Mutex

	Block bool

	CallCountConnect    int
	CallCountDisconnect int
	Joined              bool
}

func (p *Provider) Connect(ctx context.Context) error {
	p.mu.Lock()
	p.CallCountConnect++
	block := p.Block
	p.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}

	p.mu.Lock()
	p.Joined = true
	p.mu.Unlock()
	return nil
}

func (p *Provider) Disconnect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.CallCountDisconnect++
	p.Joined = false
}

// Counts returns connect and disconnect call counts.
func (p *Provider) Counts() (connects, disconnects int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.CallCountConnect, p.CallCountDisconnect
}
