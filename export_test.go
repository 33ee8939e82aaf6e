package tierrouter

import "time"

// SetHealthClock replaces the tracker's clock.
func SetHealthClock(h *HealthTracker, now func() time.Time) { h.now = now }

// SetProberClock replaces the prober's clock.
func SetProberClock(p *Prober, now func() time.Time) { p.now = now }

// SetAccountantClock replaces the accountant's clock.
func SetAccountantClock(a *Accountant, now func() time.Time) { a.now = now }
