package testutil

import "sync"

// Sink records outbound chat sends for assertions.
type Sink struct {
	mu    sync.Mutex
	sends []SinkSend
}

// SinkSend is one recorded Send call.
type SinkSend struct {
	Channel string
	Text    string
}

// Send records the call. It satisfies the bot's outbound interface.
func (s *Sink) Send(channel, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, SinkSend{Channel: channel, Text: text})
}

// SendRaw records a raw line as a send with an empty channel.
func (s *Sink) SendRaw(line string) error {
	s.Send("", line)
	return nil
}

// Sends returns a copy of everything recorded so far.
func (s *Sink) Sends() []SinkSend {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SinkSend, len(s.sends))
	copy(out, s.sends)
	return out
}

// Last returns the most recent send, or a zero value when none.
func (s *Sink) Last() SinkSend {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sends) == 0 {
		return SinkSend{}
	}
	return s.sends[len(s.sends)-1]
}

// Reset clears recorded sends.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = nil
}
