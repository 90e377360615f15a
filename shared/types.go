package shared

type ServerConfig struct {
	Sqlite    SqliteConfig    `mapstructure:"sqlite" validate:"required"`
	SecureHer SecureHerConfig `mapstructure:"secureher" validate:"required"`
	Google    GoogleConfig    `mapstructure:"google"`
	Twilio    TwilioConfig    `mapstructure:"twilio"`
}

type SqliteConfig struct {
	PassPhrase string `mapstructure:"passPhrase" validate:"required"`
}

type SecureHerConfig struct {
	PrivateKeyPem string         `mapstructure:"privateKeyPem" validate:"required"`
	Cron          CronConfig     `mapstructure:"cron" validate:"required"`
	Listener      ListenerConfig `mapstructure:"listener" validate:"required"`
	Alert         AlertConfig    `mapstructure:"alert"`
}

type CronConfig struct {
	TimeZone string `mapstructure:"timeZone" validate:"required"`
}

type ListenerConfig struct {
	Port int `mapstructure:"port" validate:"required"`
}

// AlertConfig holds the tunables of the SOS alert lifecycle. Zero values
// fall back to the defaults in the alert package.
type AlertConfig struct {
	MaxRecordingSeconds    int `mapstructure:"maxRecordingSeconds"`
	LocationTimeoutSeconds int `mapstructure:"locationTimeoutSeconds"`
	SentDisplaySeconds     int `mapstructure:"sentDisplaySeconds"`
}

type GoogleConfig struct {
	ApplicationCredentials string        `mapstructure:"applicationCredentials"`
	Storage                StorageConfig `mapstructure:"storage"`
}

type StorageConfig struct {
	Bucket                    string      `mapstructure:"bucket" validate:"required_with=EnableSqliteBackupAndSync"`
	Prefix                    string      `mapstructure:"prefix" validate:"required_with=EnableSqliteBackupAndSync"`
	SqliteBackupSchedule      string      `mapstructure:"sqliteBackupSchedule" validate:"required_with=EnableSqliteBackupAndSync"`
	EnableSqliteBackupAndSync interface{} `mapstructure:"enableSqliteBackupAndSync" validate:"omitempty,bool"`
}

type TwilioConfig struct {
	AccountSid string `mapstructure:"accountSid"`
	AuthToken  string `mapstructure:"authToken"`
	FromNumber string `mapstructure:"fromNumber"`
}
