package notify

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/prasatya/authflow/config"
	"github.com/prasatya/authflow/pkg/mailer"
	tpl "github.com/prasatya/authflow/pkg/mailer/templates"
)

// Publisher enqueues a JSON message for the email worker.
// *helpers.RabbitPublisher satisfies it.
type Publisher interface {
	PublishJSON(ctx context.Context, body any) error
}

// QueueNotifier delivers notifications by enqueuing email jobs on
// RabbitMQ; the email worker renders and sends them through Mailgun.
type QueueNotifier struct {
	Pub    Publisher
	Cfg    *config.Config
	Logger *logrus.Logger
}

func NewQueueNotifier(pub Publisher, cfg *config.Config, logger *logrus.Logger) *QueueNotifier {
	return &QueueNotifier{Pub: pub, Cfg: cfg, Logger: logger}
}

var _ Notifier = (*QueueNotifier)(nil)

func (n *QueueNotifier) enabled() bool {
	return n.Pub != nil && (n.Cfg == nil || n.Cfg.MailSendEnabled)
}

// SendWelcome enqueues the one-shot welcome email. When sending is
// disabled by config the job is dropped and reported as delivered, so
// the ledger does not retry forever.
func (n *QueueNotifier) SendWelcome(ctx context.Context, req WelcomeRequest) error {
	if !n.enabled() {
		return nil
	}
	data := tpl.NewWelcomeData(n.Cfg, req.Name, req.Email,
		tpl.WithDashboardURL(req.DashboardURL),
		tpl.WithSupportURL(req.SupportURL),
		tpl.WithTime(time.Now()),
	)
	job := mailer.EmailJob{To: req.Email, Template: tpl.Welcome, Data: data}
	return n.Pub.PublishJSON(ctx, job)
}

// SendAccountUpdate enqueues an account-change email carrying the list
// of changed profile fields.
func (n *QueueNotifier) SendAccountUpdate(ctx context.Context, req AccountUpdateRequest) error {
	if !n.enabled() {
		return nil
	}
	data := tpl.NewProfileUpdatedData(n.Cfg, req.Name, req.Email, req.ChangedFields,
		tpl.WithTime(time.Now()),
	)
	job := mailer.EmailJob{To: req.Email, Template: tpl.ProfileUpdated, Data: data}
	return n.Pub.PublishJSON(ctx, job)
}

// SendPasswordChanged enqueues the post-change security notice.
func (n *QueueNotifier) SendPasswordChanged(ctx context.Context, req PasswordChangedRequest) error {
	if !n.enabled() {
		return nil
	}
	data := tpl.NewPasswordChangedData(n.Cfg, req.Name, req.Email,
		tpl.WithTime(time.Now()),
	)
	job := mailer.EmailJob{To: req.Email, Template: tpl.PasswordChanged, Data: data}
	return n.Pub.PublishJSON(ctx, job)
}
