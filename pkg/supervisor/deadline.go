package supervisor

import "time"

// Deadline is a cancellable timeout that a running command may push back
type Deadline struct {
	timer *time.Timer
}

func NewDeadline(d time.Duration) *Deadline {
	return &Deadline{timer: time.NewTimer(d)}
}

// C fires once the deadline passes
func (d *Deadline) C() <-chan time.Time {
	return d.timer.C
}

// Extend replaces the deadline with now+to, whether or not it already fired
func (d *Deadline) Extend(to time.Duration) {
	d.timer.Reset(to)
}

func (d *Deadline) Stop() {
	d.timer.Stop()
}
