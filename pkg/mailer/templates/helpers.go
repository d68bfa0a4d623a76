package templates

import (
	"time"

	"github.com/prasatya/authflow/config"
)

// Option pattern
type Option func(*EmailData)

func WithTime(t time.Time) Option {
	return func(d *EmailData) {
		utc := t.UTC()
		d.TimeAt = utc
		d.Time = utc.Format("02 January 2006, 15:04")
	}
}

func WithDashboardURL(url string) Option {
	return func(d *EmailData) {
		if url != "" {
			d.DashboardURL = url
		}
	}
}

func WithSupportURL(url string) Option {
	return func(d *EmailData) {
		if url != "" {
			d.SupportURL = url
		}
	}
}

func WithChangedFields(fields []string) Option {
	return func(d *EmailData) { d.ChangedFields = fields }
}

// NewBaseEmailData fills the common fields from config, then applies Options.
func NewBaseEmailData(cfg *config.Config, typ string, name, email string, opts ...Option) EmailData {
	d := EmailData{
		Name:           name,
		Email:          email,
		RecipientEmail: email,
		Type:           typ,
	}
	if cfg != nil {
		d.CompanyName = cfg.CompanyName
		d.CompanyAddress = cfg.CompanyAddress
		d.AppName = cfg.AppName
		d.LogoURL = cfg.LogoURL
		d.SupportURL = cfg.SupportURL
		d.PrivacyURL = cfg.PrivacyURL
		d.DashboardURL = cfg.DashboardURL
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func NewWelcomeData(cfg *config.Config, name, email string, opts ...Option) map[string]any {
	d := NewBaseEmailData(cfg, Welcome, name, email, opts...)
	return ToMap(d)
}

func NewProfileUpdatedData(cfg *config.Config, name, email string, changed []string, opts ...Option) map[string]any {
	opts = append([]Option{WithChangedFields(changed)}, opts...)
	d := NewBaseEmailData(cfg, ProfileUpdated, name, email, opts...)
	return ToMap(d)
}

func NewPasswordChangedData(cfg *config.Config, name, email string, opts ...Option) map[string]any {
	d := NewBaseEmailData(cfg, PasswordChanged, name, email, opts...)
	return ToMap(d)
}
