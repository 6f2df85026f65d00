package ledger

import (
	"context"
	"log/slog"

	"coin-ledger/internal/models"
)

type Sound string

const (
	SoundCoinsSpent  Sound = "coins_spent"
	SoundCoinsEarned Sound = "coins_earned"
)

// Settings are the user's feedback preferences. They are passed in rather
// than read from a global store.
type Settings struct {
	SoundEnabled   bool
	HapticsEnabled bool
}

type AudioPlayer interface {
	Play(ctx context.Context, sound Sound) error
}

type Haptics interface {
	Impact(ctx context.Context)
}

// FeedbackEvent describes one visible balance change.
type FeedbackEvent struct {
	Kind    models.EntryKind
	Amount  int64
	Balance int64
}

// Feedback fans a balance change out to audio, haptics and any visual listener.
type Feedback struct {
	settings Settings
	audio    AudioPlayer
	haptics  Haptics
	visual   func(FeedbackEvent)
	logger   *slog.Logger
}

func NewFeedback(settings Settings, audio AudioPlayer, haptics Haptics, logger *slog.Logger) *Feedback {
	return &Feedback{
		settings: settings,
		audio:    audio,
		haptics:  haptics,
		logger:   logger,
	}
}

// OnVisual registers the transient coin animation hook.
func (f *Feedback) OnVisual(fn func(FeedbackEvent)) {
	f.visual = fn
}

func (f *Feedback) BalanceChanged(ctx context.Context, event FeedbackEvent) {
	if f == nil {
		return
	}

	if f.visual != nil {
		f.visual(event)
	}

	if f.settings.SoundEnabled && f.audio != nil {
		sound := SoundCoinsEarned
		if event.Kind == models.EntryKindDebit {
			sound = SoundCoinsSpent
		}
		// a missing sound never fails the mutation
		if err := f.audio.Play(ctx, sound); err != nil {
			f.logger.WarnContext(ctx, "failed to play sound", "sound", sound, "err", err)
		}
	}

	if f.settings.HapticsEnabled && f.haptics != nil {
		f.haptics.Impact(ctx)
	}
}

// LogAudioPlayer stands in for a speaker on headless clients.
type LogAudioPlayer struct {
	Logger *slog.Logger
}

func (p LogAudioPlayer) Play(ctx context.Context, sound Sound) error {
	p.Logger.DebugContext(ctx, "play sound", "sound", sound)
	return nil
}
