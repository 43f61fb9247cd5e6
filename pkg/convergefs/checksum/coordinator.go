package checksum

// Coordinator is the single authority for the content checksum of one
// entity. Any attribute that can alter content (explicit content, remote
// source, link target) reads and records through it, so that after a write
// they all agree the entity is in sync without recomputing independently.
type Coordinator struct {
	retrieve func() (string, error)
	value    string
	have     bool
}

// NewCoordinator builds a coordinator around a retrieval function that
// observes the current on-disk checksum.
func NewCoordinator(retrieve func() (string, error)) *Coordinator {
	return &Coordinator{retrieve: retrieve}
}

// Set stores an explicit checksum when one is given. With no argument it
// forces a fresh retrieval and stores whatever is currently observed.
func (c *Coordinator) Set(value ...string) error {
	if len(value) > 0 {
		c.value, c.have = value[0], true
		return nil
	}
	observed, err := c.retrieve()
	if err != nil {
		return err
	}
	c.value, c.have = observed, true
	return nil
}

// Value returns the recorded checksum, if any.
func (c *Coordinator) Value() (string, bool) {
	return c.value, c.have
}

// Invalidate drops the recorded checksum.
func (c *Coordinator) Invalidate() {
	c.value, c.have = "", false
}
