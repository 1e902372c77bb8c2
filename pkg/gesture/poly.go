package gesture

// link places finger at the head of its polyphony group. A previous leader
// is suppressed (silent but still tracked) and chained behind the new
// finger. Returns the finger that just lost the lead, or Nobody.
func (c *Context) link(finger int) int {
	polyGroup := c.fingers[finger].polyGroup
	turningOff := c.polys[polyGroup].currentFinger
	if turningOff != Nobody {
		c.fingers[turningOff].isSuppressed = true
		c.fingers[turningOff].nextInPolyGroup = finger
		c.fingers[finger].prevInPolyGroup = turningOff
	}
	c.polys[polyGroup].currentFinger = finger
	return turningOff
}

// unlink removes finger from its polyphony group. If finger was the leader,
// the next-most-recent member is promoted and un-suppressed. Returns the
// promoted finger, or Nobody.
func (c *Context) unlink(finger int) int {
	polyGroup := c.fingers[finger].polyGroup
	current := c.polys[polyGroup].currentFinger
	prev := c.fingers[finger].prevInPolyGroup
	next := c.fingers[finger].nextInPolyGroup
	turningOn := Nobody

	if prev != Nobody {
		c.fingers[prev].nextInPolyGroup = next
	}
	if next != Nobody {
		c.fingers[next].prevInPolyGroup = prev
	}
	if finger == current {
		c.polys[polyGroup].currentFinger = prev
		turningOn = prev
		if turningOn != Nobody {
			c.fingers[turningOn].isSuppressed = false
		}
	}

	c.fingers[finger].prevInPolyGroup = Nobody
	c.fingers[finger].nextInPolyGroup = Nobody
	c.fingers[finger].polyGroup = Nobody
	return turningOn
}
