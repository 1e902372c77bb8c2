package gesture

// allocChannel assigns finger the least-used channel in the span. Ties break
// toward the channel farthest after the last allocation in cyclic order, so
// a just-released channel gets the longest possible time to finish its
// release envelope before reuse. The finger is spliced onto the tail of the
// channel's finger list and becomes its leader.
func (c *Context) allocChannel(finger int) int {
	for lowUsed := 0; ; lowUsed++ {
		for s := 0; s < c.channelSpan; s++ {
			span := c.channelSpan
			base := c.channelBase
			candidate := c.lastAllocatedChannel + 1 + s
			channel := ((candidate-base)%span+span)%span + base
			if c.channels[channel].useCount < 0 {
				c.diag.Fail("channel %d use count below zero on alloc", channel)
				return base
			}
			if c.channels[channel].useCount != lowUsed {
				continue
			}
			c.channels[channel].useCount++
			current := c.channels[channel].currentFinger
			if current != Nobody {
				if c.fingers[current].nextInChannel != Nobody {
					c.diag.Fail("channel %d leader %d has a next finger on alloc", channel, current)
				}
				c.fingers[current].nextInChannel = finger
				c.fingers[finger].prevInChannel = current
			}
			c.channels[channel].currentFinger = finger
			c.lastAllocatedChannel = channel
			return channel
		}
	}
}

// freeChannel releases finger's channel: the use count drops, the finger is
// unlinked from the channel list, and if it was the leader the previous
// (older) finger is promoted.
func (c *Context) freeChannel(finger int) {
	channel := c.fingers[finger].channel
	c.channels[channel].useCount--
	if c.channels[channel].useCount < 0 {
		c.diag.Fail("channel %d use count below zero on free", channel)
	}
	prev := c.fingers[finger].prevInChannel
	next := c.fingers[finger].nextInChannel
	if prev != Nobody {
		c.fingers[prev].nextInChannel = next
	}
	if next != Nobody {
		c.fingers[next].prevInChannel = prev
	}
	c.fingers[finger].prevInChannel = Nobody
	c.fingers[finger].nextInChannel = Nobody
	if c.channels[channel].currentFinger == finger {
		c.channels[channel].currentFinger = prev
	}
}
