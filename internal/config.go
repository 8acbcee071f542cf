package internal

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Host              string        `env:"HOST,default=0.0.0.0" validate:"required"`
	Port              int           `env:"PORT,default=8080" validate:"min=1,max=65535"`
	GrpcPort          int           `env:"GRPC_PORT,default=50051" validate:"min=1,max=65535,nefield=Port"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO" validate:"oneof=DEBUG INFO WARN ERROR debug info warn error"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=200ms" validate:"gt=0"`
	SendTimeout       time.Duration `env:"SEND_TIMEOUT,default=0s" validate:"gte=0"`
	ShutdownTimeout   time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s" validate:"gt=0"`
	PingInterval      time.Duration `env:"PING_INTERVAL,default=30s" validate:"gte=0"`
	MetricInterval    time.Duration `env:"METRIC_INTERVAL,default=1m" validate:"gte=0"`
	StrictRecipient   bool          `env:"STRICT_RECIPIENT,default=false"`
	MaxMessageLength  int           `env:"MAX_MESSAGE_LENGTH,default=2000" validate:"gt=0"`
	MaxNameLength     int           `env:"MAX_NAME_LENGTH,default=32" validate:"gt=0,lte=64"`
	MessagesPerSecond float64       `env:"MESSAGES_PER_SECOND,default=5" validate:"gte=0"`
	MessageBurst      int           `env:"MESSAGE_BURST,default=10" validate:"gte=0"`
	CharReplacement   string        `env:"CHARACTER_REPLACEMENT,default=*"`
	NameKey           string        `env:"NAME_KEY" validate:"omitempty,hexadecimal,len=64"`
}

// LoadConfig reads an optional .env file, then the environment.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	_, err := CharacterRune(c.CharReplacement)
	return err
}

func (c Config) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) GrpcAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.GrpcPort)
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
