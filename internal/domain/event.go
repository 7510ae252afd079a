package domain

const (
	EventNameSessionStarted      = "session.started"
	EventNameRoundResolved       = "round.resolved"
	EventNameSessionCompleted    = "session.completed"
	EventNameSessionRecorded     = "session.recorded"
	EventNamePersistenceDeferred = "session.persistence_deferred"
	EventNameLeaderboardUpdated  = "leaderboard.updated"
)

type EventSessionStarted struct {
	SessionID       string
	Identity        string
	Mode            Mode
	RequestedRounds int
	TotalRounds     int
}

func (EventSessionStarted) Name() string { return EventNameSessionStarted }

type EventRoundResolved struct {
	SessionID string
	Outcome   RoundOutcome
}

func (EventRoundResolved) Name() string { return EventNameRoundResolved }

type EventSessionCompleted struct {
	Summary SessionSummary
}

func (EventSessionCompleted) Name() string { return EventNameSessionCompleted }

// EventSessionRecorded is published only when a summary was newly stored,
// never for a replayed submission.
type EventSessionRecorded struct {
	Summary SessionSummary
}

func (EventSessionRecorded) Name() string { return EventNameSessionRecorded }

type EventPersistenceDeferred struct {
	SessionID string
	Attempts  int
	Reason    string
}

func (EventPersistenceDeferred) Name() string { return EventNamePersistenceDeferred }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
