package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"civic-gamification/services"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// Subjects published by the issue and engagement services.
const (
	SubjectIssueReported = "issues.reported"
	SubjectIssueResolved = "issues.resolved"
	SubjectCommentPosted = "comments.posted"
	SubjectHelpfulVotes  = "votes.helpful"

	QueueGroup = "gamification-service"
)

var ErrUnknownSubject = errors.New("unknown activity subject")

type IssueReportedEvent struct {
	IssueID      string  `json:"issue_id"`
	ReporterID   string  `json:"reporter_id"`
	QualityScore float64 `json:"quality_score"`
}

type IssueResolvedEvent struct {
	IssueID        string   `json:"issue_id"`
	ContributorIDs []string `json:"contributor_ids"`
}

type CommentPostedEvent struct {
	CommentID string `json:"comment_id"`
	AuthorID  string `json:"author_id"`
}

type HelpfulVotesEvent struct {
	PostID     string `json:"post_id"`
	AuthorID   string `json:"author_id"`
	PriorVotes int64  `json:"prior_votes"`
	NewVotes   int64  `json:"new_votes"`
}

// ActivityConsumer feeds platform activity from NATS into the gamification pipeline.
// Subscriptions join a queue group so each event is handled by one replica.
type ActivityConsumer struct {
	conn   *nats.Conn
	g      *services.Gamification
	logger *zap.Logger
	subs   []*nats.Subscription
}

func NewActivityConsumer(conn *nats.Conn, g *services.Gamification, logger *zap.Logger) *ActivityConsumer {
	return &ActivityConsumer{conn: conn, g: g, logger: logger}
}

func (w *ActivityConsumer) Start(ctx context.Context) error {
	w.logger.Info("🔁 starting activity consumer", zap.String("queue", QueueGroup))
	for _, subject := range []string{SubjectIssueReported, SubjectIssueResolved, SubjectCommentPosted, SubjectHelpfulVotes} {
		sub, err := w.conn.QueueSubscribe(subject, QueueGroup, func(msg *nats.Msg) {
			if err := w.Handle(ctx, msg.Subject, msg.Data); err != nil {
				w.logger.Error("activity event failed", zap.String("subject", msg.Subject), zap.Error(err))
			}
		})
		if err != nil {
			w.Stop()
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		w.subs = append(w.subs, sub)
	}
	return nil
}

// Stop drains the subscriptions so in-flight events finish.
func (w *ActivityConsumer) Stop() {
	for _, sub := range w.subs {
		if err := sub.Drain(); err != nil {
			w.logger.Warn("drain subscription", zap.String("subject", sub.Subject), zap.Error(err))
		}
	}
	w.subs = nil
}

// Handle decodes one event and records it.
func (w *ActivityConsumer) Handle(ctx context.Context, subject string, data []byte) error {
	switch subject {
	case SubjectIssueReported:
		var ev IssueReportedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", subject, err)
		}
		_, err := w.g.RecordIssueReported(ctx, ev.ReporterID, ev.IssueID, ev.QualityScore)
		return err

	case SubjectIssueResolved:
		var ev IssueResolvedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", subject, err)
		}
		var errs []error
		for _, userID := range ev.ContributorIDs {
			if _, err := w.g.RecordResolutionContribution(ctx, userID, ev.IssueID); err != nil {
				errs = append(errs, fmt.Errorf("contributor %s: %w", userID, err))
			}
		}
		return errors.Join(errs...)

	case SubjectCommentPosted:
		var ev CommentPostedEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", subject, err)
		}
		_, err := w.g.RecordComment(ctx, ev.AuthorID, ev.CommentID)
		return err

	case SubjectHelpfulVotes:
		var ev HelpfulVotesEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return fmt.Errorf("decode %s: %w", subject, err)
		}
		_, err := w.g.RecordHelpfulVotes(ctx, ev.AuthorID, ev.PostID, ev.PriorVotes, ev.NewVotes)
		return err
	}
	return fmt.Errorf("%w: %s", ErrUnknownSubject, subject)
}
