package saki

import "testing"

type fakeMillis struct{ now uint32 }

func (f *fakeMillis) read() uint32      { return f.now }
func (f *fakeMillis) advance(ms uint32) { f.now += ms }

func TestClockStoppedUntilStarted(t *testing.T) {
	ms := &fakeMillis{}
	c := NewClock(ms.read)
	ms.advance(5000)
	c.Tick()
	if c.Now() != 0 || c.Running() {
		t.Fatalf("stopped clock advanced to %d", c.Now())
	}
	c.Start()
	if c.Now() != 1 {
		t.Fatalf("Start: Now = %d, want 1", c.Now())
	}
	// time before Start is not counted
	c.Tick()
	if c.Now() != 1 {
		t.Fatalf("Tick right after Start = %d", c.Now())
	}
}

func TestClockAccumulatesSubSecond(t *testing.T) {
	ms := &fakeMillis{now: 100}
	c := NewClock(ms.read)
	c.Start()
	for i := 0; i < 35; i++ {
		ms.advance(300)
		c.Tick()
		if c.remMs >= 1000 {
			t.Fatalf("remainder %d >= 1000", c.remMs)
		}
	}
	// 35*300 = 10500ms
	if c.Now() != 1+10 {
		t.Fatalf("Now = %d, want 11", c.Now())
	}
	if c.remMs != 500 {
		t.Fatalf("remainder = %d, want 500", c.remMs)
	}
}

func TestClockWraparound(t *testing.T) {
	ms := &fakeMillis{now: 0xFFFFFF00}
	c := NewClock(ms.read)
	c.Set(100)
	ms.now = 1500 // wrapped; counted from 0
	c.Tick()
	if c.Now() != 101 {
		t.Fatalf("Now after wrap = %d, want 101", c.Now())
	}
}

func TestClockAlarmRelative(t *testing.T) {
	ms := &fakeMillis{}
	c := NewClock(ms.read)
	c.Start()
	c.SetAlarm(5, true)
	if c.Alarm() != 6 {
		t.Fatalf("Alarm = %d, want 6", c.Alarm())
	}
	for i := 0; i < 5; i++ {
		ms.advance(1000)
		c.Tick()
	}
	if c.IsAlarmed(false) {
		t.Fatalf("alarmed at %d, not yet past %d", c.Now(), c.Alarm())
	}
	ms.advance(1000)
	c.Tick()
	if !c.IsAlarmed(false) {
		t.Fatalf("not alarmed at %d", c.Now())
	}
	// stays set while not cleared
	ms.advance(1000)
	c.Tick()
	if !c.IsAlarmed(true) {
		t.Fatalf("IsAlarmed(clear) = false")
	}
	if c.IsAlarmed(true) {
		t.Fatalf("IsAlarmed after clear = true")
	}
	if c.Alarm() != 0 {
		t.Fatalf("clear did not disarm")
	}
	ms.advance(5000)
	c.Tick()
	if c.IsAlarmed(false) {
		t.Fatalf("disarmed alarm fired")
	}
}

func TestClockAlarmAbsoluteAndClear(t *testing.T) {
	ms := &fakeMillis{}
	c := NewClock(ms.read)
	c.Set(10)
	c.SetAlarm(12, false)
	ms.advance(3000)
	c.Tick()
	if !c.IsAlarmed(false) {
		t.Fatalf("absolute alarm did not fire at %d", c.Now())
	}
	c.SetAlarm(100, true)
	if c.IsAlarmed(false) {
		t.Fatalf("re-arming did not clear alarmed")
	}
	c.ClearAlarm()
	ms.advance(200000)
	c.Tick()
	if c.IsAlarmed(false) {
		t.Fatalf("cleared alarm fired")
	}
}

func TestClockSecondsSinceMidnight(t *testing.T) {
	ms := &fakeMillis{}
	c := NewClock(ms.read)
	c.SetTime(1000, 86390)
	ms.advance(15000)
	c.Tick()
	if got := c.SecondsSinceMidnight(); got != 5 {
		t.Fatalf("SecondsSinceMidnight = %d, want 5", got)
	}
}
