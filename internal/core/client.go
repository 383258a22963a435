package core

// Client is a single connection as seen by the core layer.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	quit chan struct{}
}

// NewClient constructs a client with initialized channels.
func NewClient(id string) *Client {
	return &Client{
		ID:       id,
		Commands: make(chan *Command, 16),
		Events:   make(chan *Event, 64),
		quit:     make(chan struct{}),
	}
}

// deliver sends without blocking; slow consumers lose the event.
func deliver(c *Client, ev *Event) {
	select {
	case c.Events <- ev:
	default:
	}
}
