package config

import "time"

// Config is the root configuration structure for coursewatch.
// Serialised to ./coursewatch.yaml (or the file given with --config).
type Config struct {
	Portal     PortalConfig     `mapstructure:"portal"     yaml:"portal"     json:"portal"`
	Store      StoreConfig      `mapstructure:"store"      yaml:"store"      json:"store"`
	Notify     NotifyConfig     `mapstructure:"notify"     yaml:"notify"     json:"notify"`
	Notice     NoticeConfig     `mapstructure:"notice"     yaml:"notice"     json:"notice"`
	Assignment AssignmentConfig `mapstructure:"assignment" yaml:"assignment" json:"assignment"`
	// Alias maps a lower-cased course name to the name used in message titles
	// and notification tags.
	Alias map[string]string `mapstructure:"alias" yaml:"alias" json:"alias"`
}

// PortalConfig controls the connection to the course portal and its SSO.
type PortalConfig struct {
	// BaseURL is the Blackboard root, e.g. https://course.pku.edu.cn.
	BaseURL string `mapstructure:"base_url" yaml:"base_url" json:"base_url"`
	// IAAAURL is the single sign-on root, e.g. https://iaaa.pku.edu.cn.
	IAAAURL  string `mapstructure:"iaaa_url" yaml:"iaaa_url" json:"iaaa_url"`
	Username string `mapstructure:"username" yaml:"username" json:"username"`
	Password string `mapstructure:"password" yaml:"password" json:"password"`
	// Timezone is used to display times and to read naive portal timestamps.
	Timezone string `mapstructure:"timezone" yaml:"timezone" json:"timezone"`
	// StreamSettle is the pause between opening the stream viewer and loading
	// it. Without it the portal sometimes answers with an empty stream.
	StreamSettle time.Duration `mapstructure:"stream_settle" yaml:"stream_settle" json:"stream_settle"`
	// RequestInterval is the minimum spacing between detail-page fetches.
	RequestInterval time.Duration `mapstructure:"request_interval" yaml:"request_interval" json:"request_interval"`
	Timeout         time.Duration `mapstructure:"timeout"          yaml:"timeout"          json:"timeout"`
	RetryMax        int           `mapstructure:"retry_max"        yaml:"retry_max"        json:"retry_max"`
}

// StoreConfig controls where processed records are kept.
type StoreConfig struct {
	// Driver is "file" (default), "sqlite" or "mysql".
	Driver string `mapstructure:"driver" yaml:"driver" json:"driver"`
	// Dir holds notice_record.json and assignment_record.json (file driver).
	Dir string `mapstructure:"dir" yaml:"dir" json:"dir"`
	// Path is the SQLite file path (sqlite driver).
	Path string `mapstructure:"path" yaml:"path" json:"path"`
	// DSN is the MySQL data source name (mysql driver).
	DSN string `mapstructure:"dsn" yaml:"dsn" json:"dsn"`
}

// NotifyConfig selects and configures the single delivery channel.
type NotifyConfig struct {
	// Method is one of email, bark, sct, sc3, telegram, slack, webhook.
	Method string            `mapstructure:"method" yaml:"method" json:"method"`
	Email  EmailNotifyConfig `mapstructure:"email"  yaml:"email"  json:"email"`
	Bark   BarkNotifyConfig  `mapstructure:"bark"   yaml:"bark"   json:"bark"`
	// SendKey is the ServerChan key (sct, sc3). Bark falls back to it when
	// bark.key is empty.
	SendKey  string               `mapstructure:"sendkey"  yaml:"sendkey"  json:"sendkey"`
	Telegram TelegramNotifyConfig `mapstructure:"telegram" yaml:"telegram" json:"telegram"`
	Slack    SlackNotifyConfig    `mapstructure:"slack"    yaml:"slack"    json:"slack"`
	Webhook  WebhookNotifyConfig  `mapstructure:"webhook"  yaml:"webhook"  json:"webhook"`
}

// EmailNotifyConfig configures send-to-self email.
type EmailNotifyConfig struct {
	Address  string `mapstructure:"address"  yaml:"address"  json:"address"`
	Password string `mapstructure:"password" yaml:"password" json:"password"`
	// Sender is the display name in the From header.
	Sender string `mapstructure:"sender" yaml:"sender" json:"sender"`
	// SMTPHost overrides the host derived from the address domain.
	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host" json:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port" yaml:"smtp_port" json:"smtp_port"`
}

// BarkNotifyConfig configures the Bark iOS push app.
type BarkNotifyConfig struct {
	Key    string `mapstructure:"key"    yaml:"key"    json:"key"`
	Server string `mapstructure:"server" yaml:"server" json:"server"`
}

// TelegramNotifyConfig configures the Telegram Bot API channel.
type TelegramNotifyConfig struct {
	BotToken string `mapstructure:"bot_token" yaml:"bot_token" json:"bot_token"`
	ChatID   string `mapstructure:"chat_id"   yaml:"chat_id"   json:"chat_id"`
}

// SlackNotifyConfig configures a Slack incoming webhook.
type SlackNotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url" yaml:"webhook_url" json:"webhook_url"`
}

// WebhookNotifyConfig configures a generic JSON webhook.
type WebhookNotifyConfig struct {
	URL    string `mapstructure:"url"    yaml:"url"    json:"url"`
	Secret string `mapstructure:"secret" yaml:"secret" json:"secret"`
}

// NoticeConfig controls the notice reconciler.
type NoticeConfig struct {
	Enabled     bool   `mapstructure:"enabled"      yaml:"enabled"      json:"enabled"`
	TitlePrefix string `mapstructure:"title_prefix" yaml:"title_prefix" json:"title_prefix"`
	DisplayTime bool   `mapstructure:"display_time" yaml:"display_time" json:"display_time"`
	// AllowedEvents holds the enabled category digits: 1 assignments,
	// 2 course content, 3 everything else.
	AllowedEvents string `mapstructure:"allowed_events" yaml:"allowed_events" json:"allowed_events"`
	// CourseEvents overrides AllowedEvents per lower-cased course name.
	CourseEvents map[string]string `mapstructure:"course_events" yaml:"course_events" json:"course_events"`
	// BlockedCourses never produce notifications.
	BlockedCourses []string `mapstructure:"blocked_courses" yaml:"blocked_courses" json:"blocked_courses"`
}

// AssignmentConfig controls the calendar reconciler.
type AssignmentConfig struct {
	Enabled     bool   `mapstructure:"enabled"      yaml:"enabled"      json:"enabled"`
	TitlePrefix string `mapstructure:"title_prefix" yaml:"title_prefix" json:"title_prefix"`
	DisplayTime bool   `mapstructure:"display_time" yaml:"display_time" json:"display_time"`
	// AdvanceHours is how far ahead of a deadline the user is told about it.
	AdvanceHours int `mapstructure:"advance_hours" yaml:"advance_hours" json:"advance_hours"`
}
