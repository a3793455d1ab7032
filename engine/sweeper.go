package engine

// SweepReport summarizes one reconciliation pass.
type SweepReport struct {
	PlayersRemoved int `json:"playersRemoved"`
	RoomsRemoved   int `json:"roomsRemoved"`
	SessionsPruned int `json:"sessionsPruned"`
}

// Sweep runs one reconciliation pass immediately.
func (e *Engine) Sweep() (SweepReport, error) {
	var report SweepReport

	err := e.do(func() {
		report = e.sweep()
	})

	return report, err
}

// sweep evicts players whose connection is no longer live, deletes their
// sessions, removes emptied rooms, restores a host where one was lost, and
// rebroadcasts every room it changed. Disconnected sessions that no longer
// hold a seat are deleted as well.
func (e *Engine) sweep() SweepReport {
	var report SweepReport

	now := e.now()

	for _, g := range e.registry.Games() {
		kept := make([]*Player, 0, len(g.Players))
		for _, p := range g.Players {
			if e.sessions.Live(p.ID, now, e.opts.HeartbeatTimeout) {
				kept = append(kept, p)
				continue
			}

			e.logf("SWEEP: Removing disconnected player %q (%s) from room %s", p.Name, p.ID, g.ID)
			report.PlayersRemoved++

			if _, ok := e.sessions.Get(p.ID); ok {
				e.sessions.Delete(p.ID)
				report.SessionsPruned++
			}
			e.out.Leave(g.ID, p.ID)
		}

		if len(kept) == len(g.Players) {
			continue
		}
		g.Players = kept

		if len(g.Players) == 0 {
			e.registry.Remove(g.ID)
			report.RoomsRemoved++
			e.logf("SWEEP: Removed empty room %s", g.ID)
			continue
		}

		if h := g.ensureHost(); h != nil {
			e.logf("SWEEP: New host assigned in room %s: %q", g.ID, h.Name)
		}

		e.broadcastRoom(g)
	}

	e.sessions.Each(func(s *Session) {
		if s.Connected {
			return
		}
		e.sessions.Delete(s.ConnID)
		report.SessionsPruned++
	})

	if report != (SweepReport{}) {
		e.logf("SWEEP: Removed %d players and %d rooms, pruned %d sessions",
			report.PlayersRemoved, report.RoomsRemoved, report.SessionsPruned)
	}

	return report
}
