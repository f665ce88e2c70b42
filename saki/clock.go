package saki

const secondsPerDay = 86400

// Clock is a cooperative seconds counter advanced by Tick from a free
// running millisecond source. A zero counter means the clock is stopped.
type Clock struct {
	millis func() uint32

	secs    uint32
	last    uint32
	remMs   uint32
	alarm   uint32
	alarmed bool

	midnight   uint32 // seconds since midnight when the clock was set
	midnightAt uint32 // counter value at that moment
}

// NewClock returns a stopped clock reading millis on every Tick.
func NewClock(millis func() uint32) *Clock {
	return &Clock{millis: millis}
}

// Start sets the counter to 1 so that Tick begins advancing it.
func (c *Clock) Start() { c.Set(1) }

// Set loads the counter and restarts delta tracking from now.
// Zero stops the clock.
func (c *Clock) Set(secs uint32) {
	c.secs = secs
	c.last = c.millis()
	c.remMs = 0
}

// SetTime loads the counter and the seconds-since-midnight reference.
func (c *Clock) SetTime(secs, sinceMidnight uint32) {
	c.Set(secs)
	c.midnight = sinceMidnight % secondsPerDay
	c.midnightAt = secs
}

// Now returns the counter.
func (c *Clock) Now() uint32 { return c.secs }

// Running reports whether the counter is non-zero.
func (c *Clock) Running() bool { return c.secs != 0 }

// SecondsSinceMidnight advances the last value given to SetTime by the
// seconds the counter has moved since.
func (c *Clock) SecondsSinceMidnight() uint32 {
	return (c.midnight + (c.secs - c.midnightAt)) % secondsPerDay
}

// Tick folds the milliseconds elapsed since the previous Tick into the
// counter. A source that wrapped is treated as having counted from 0.
func (c *Clock) Tick() {
	if c.secs == 0 {
		return
	}
	prev := c.last
	c.last = c.millis()
	if c.last < prev {
		prev = 0
	}
	c.remMs += c.last - prev
	c.secs += c.remMs / 1000
	c.remMs %= 1000
	if c.alarm != 0 && c.secs > c.alarm {
		c.alarmed = true
	}
}

// SetAlarm arms the alarm at secs, or secs from now when relative.
func (c *Clock) SetAlarm(secs uint32, relative bool) {
	c.alarmed = false
	if relative {
		c.alarm = c.secs + secs
	} else {
		c.alarm = secs
	}
}

// ClearAlarm disarms the alarm.
func (c *Clock) ClearAlarm() {
	c.alarmed = false
	c.alarm = 0
}

// Alarm returns the armed threshold, 0 when disarmed.
func (c *Clock) Alarm() uint32 { return c.alarm }

// IsAlarmed reports whether the counter has passed the alarm. With clear,
// a fired alarm is also disarmed.
func (c *Clock) IsAlarmed(clear bool) bool {
	a := c.alarmed
	if a && clear {
		c.ClearAlarm()
	}
	return a
}
