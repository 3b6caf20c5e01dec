package bot

import "sync"

// Exchange is one remembered chat interaction.
type Exchange struct {
	User     string
	Message  string
	Response string
}

// memoryCap bounds the ring; the oldest exchange is evicted first.
const memoryCap = 50

// MemoryRing is the bot's short-term conversation memory. Appends come from
// one writer at a time; readers get copies, never live slices.
type MemoryRing struct {
	mu      sync.Mutex
	entries []Exchange
}

func NewMemoryRing() *MemoryRing {
	return &MemoryRing{}
}

// Append records an exchange, evicting the oldest past capacity.
func (m *MemoryRing) Append(user, message, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Exchange{User: user, Message: message, Response: response})
	if len(m.entries) > memoryCap {
		m.entries = m.entries[len(m.entries)-memoryCap:]
	}
}

// Recent returns a copy of the last n exchanges, oldest first.
func (m *MemoryRing) Recent(n int) []Exchange {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.entries) {
		n = len(m.entries)
	}
	out := make([]Exchange, n)
	copy(out, m.entries[len(m.entries)-n:])
	return out
}

// Len reports the number of remembered exchanges.
func (m *MemoryRing) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
