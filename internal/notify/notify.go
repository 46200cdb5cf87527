// Package notify turns domain events into queued mails.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/supratours/virements/internal/shared"
	"github.com/supratours/virements/jobs"
)

// Enqueuer queues outbound mail.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) (*asynq.TaskInfo, error)
}

// Renderer renders a named mail template.
type Renderer interface {
	RenderString(name string, data any) (string, error)
}

// UserDirectory resolves user ids to mail addresses.
type UserDirectory interface {
	Email(ctx context.Context, id int64) (string, error)
}

// Recipients lists the configured distribution lists.
type Recipients struct {
	TenderTo      []string
	TenderCc      []string
	OmraTo        []string
	OmraCc        []string
	InternshipBcc []string
}

// Line is one label/value row of a creation notice.
type Line struct {
	Label string
	Value string
}

// Service queues the notification mails.
type Service struct {
	queue      Enqueuer
	renderer   Renderer
	users      UserDirectory
	recipients Recipients
	logger     *slog.Logger
}

// NewService wires the notifier.
func NewService(queue Enqueuer, renderer Renderer, users UserDirectory, recipients Recipients, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{queue: queue, renderer: renderer, users: users, recipients: recipients, logger: logger}
}

// userEmails resolves the distinct addresses of the given users. Unknown
// users and users without an address are skipped.
func (s *Service) userEmails(ctx context.Context, ids ...*int64) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, id := range ids {
		if id == nil {
			continue
		}
		email, err := s.users.Email(ctx, *id)
		if errors.Is(err, shared.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("resolve user %d: %w", *id, err)
		}
		if email == "" || seen[email] {
			continue
		}
		seen[email] = true
		out = append(out, email)
	}
	return out, nil
}

func (s *Service) send(ctx context.Context, payload jobs.SendEmailPayload, template string, data any) error {
	body, err := s.renderer.RenderString(template, data)
	if err != nil {
		return fmt.Errorf("render %s: %w", template, err)
	}
	payload.HTML = body
	if _, err := s.queue.EnqueueSendEmail(ctx, payload); err != nil {
		return fmt.Errorf("enqueue %s: %w", template, err)
	}
	s.logger.Info("notification queued", slog.String("template", template), slog.Int("recipients", len(payload.To)+len(payload.Bcc)))
	return nil
}

// RecordCreated announces a new record to a distribution list.
func (s *Service) RecordCreated(ctx context.Context, to, cc []string, subject, intro string, lines []Line) error {
	if len(to) == 0 {
		s.logger.Debug("creation notice skipped, no recipients", slog.String("subject", subject))
		return nil
	}
	data := struct {
		Intro string
		Lines []Line
	}{Intro: intro, Lines: lines}
	return s.send(ctx, jobs.SendEmailPayload{To: to, Cc: cc, Subject: subject}, "mail/record_created", data)
}

func actorLabel(ctx context.Context) string {
	actor, ok := shared.ActorFromContext(ctx)
	switch {
	case !ok:
		return "un utilisateur"
	case actor.Name != "":
		return actor.Name
	case actor.Email != "":
		return actor.Email
	default:
		return "un utilisateur"
	}
}
