package services

// Broadcaster pushes realtime events to connected clients of one user.
type Broadcaster interface {
	BroadcastBalance(userID int64, coins int64)
}

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastBalance(int64, int64) {}
