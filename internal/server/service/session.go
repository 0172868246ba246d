package service

import (
	"context"

	"adgate/internal/notify"
	"adgate/internal/trigger"
	"adgate/internal/types"

	"go.uber.org/zap"
)

// StartSession starts the session clock of userID and begins polling its
// trigger flags. Starting a running session returns its current flags.
func (s *Service) StartSession(ctx context.Context, userID string) (types.TriggerFlags, error) {
	release, err := s.lockUser(ctx, userID)
	if err != nil {
		return types.TriggerFlags{}, err
	}
	defer release()

	if sess := s.session(userID); sess != nil {
		return sess.Flags(), nil
	}

	var ticker trigger.Ticker
	if s.scheduler != nil {
		ticker = s.scheduler
	}
	sess := trigger.NewSession(userID, s.stores.Profiles, ticker, s.logger.Named("session"),
		trigger.WithClock(s.now),
		trigger.WithPollInterval(s.config.SessionPollInterval),
		trigger.WithOnTrigger(s.announceTrigger, s.config.TriggerDebounce),
	)
	if err := sess.ResetSessionTime(ctx); err != nil {
		return types.TriggerFlags{}, err
	}
	if err := sess.Start(ctx); err != nil {
		return types.TriggerFlags{}, err
	}

	s.sessionsMu.Lock()
	s.sessions[userID] = sess
	s.sessionsMu.Unlock()

	s.logger.Info("Session started", zap.String("user_id", userID))
	return sess.Flags(), nil
}

// EndSession stops polling for userID and reports whether a session was running
func (s *Service) EndSession(userID string) bool {
	s.sessionsMu.Lock()
	sess, ok := s.sessions[userID]
	delete(s.sessions, userID)
	s.sessionsMu.Unlock()

	if !ok {
		return false
	}
	sess.Stop()
	s.logger.Info("Session ended", zap.String("user_id", userID))
	return true
}

// ActiveSessions returns the number of running sessions
func (s *Service) ActiveSessions() int {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	return len(s.sessions)
}

// Triggers returns the trigger flags of userID
func (s *Service) Triggers(ctx context.Context, userID string) (types.TriggerFlags, error) {
	if sess := s.session(userID); sess != nil {
		return sess.Flags(), nil
	}
	return s.withSession(ctx, userID, (*trigger.Session).Recompute)
}

// IncrementCommentCount counts one comment by userID
func (s *Service) IncrementCommentCount(ctx context.Context, userID string) (types.TriggerFlags, error) {
	return s.withSession(ctx, userID, (*trigger.Session).IncrementCommentCount)
}

// ResetCommentCount clears the comment counter after a comment ad
func (s *Service) ResetCommentCount(ctx context.Context, userID string) (types.TriggerFlags, error) {
	return s.withSession(ctx, userID, (*trigger.Session).ResetCommentCount)
}

// ResetSessionTime restarts the session clock after a time ad
func (s *Service) ResetSessionTime(ctx context.Context, userID string) (types.TriggerFlags, error) {
	return s.withSession(ctx, userID, (*trigger.Session).ResetSessionTime)
}

func (s *Service) session(userID string) *trigger.Session {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	return s.sessions[userID]
}

// withSession runs op on the running session of userID, or on a transient
// one when the user has none, under the user's profile lock
func (s *Service) withSession(ctx context.Context, userID string, op func(*trigger.Session, context.Context) error) (types.TriggerFlags, error) {
	release, err := s.lockUser(ctx, userID)
	if err != nil {
		return types.TriggerFlags{}, err
	}
	defer release()

	sess := s.session(userID)
	if sess == nil {
		sess = trigger.NewSession(userID, s.stores.Profiles, nil, s.logger.Named("session"),
			trigger.WithClock(s.now))
	}
	if err := op(sess, ctx); err != nil {
		return types.TriggerFlags{}, err
	}
	return sess.Flags(), nil
}

func (s *Service) announceTrigger(userID string, flags types.TriggerFlags) {
	s.logger.Info("Ad trigger raised",
		zap.String("user_id", userID),
		zap.Bool("comment_ad", flags.CommentAd),
		zap.Bool("time_ad", flags.TimeAd),
		zap.Bool("post_ad", flags.PostAd))
	s.publish(notify.EventTriggerRaised, userID, flags)
}
