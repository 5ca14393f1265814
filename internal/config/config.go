package config

import (
	"github.com/spf13/viper"
)

// Configuration comes in as environment variables on the pod; viper only
// supplies local-development defaults.

type Config struct {
	DBHost               string `mapstructure:"DB_HOST"`
	DBPort               string `mapstructure:"DB_PORT"`
	DBUser               string `mapstructure:"DB_USER"`
	DBPassword           string `mapstructure:"DB_PASSWORD"`
	DBName               string `mapstructure:"DB_NAME"`
	ServerPort           string `mapstructure:"SERVER_PORT"`
	AWSRegion            string `mapstructure:"AWS_REGION"`
	DeliverySQSQueueURL  string `mapstructure:"DELIVERY_SQS_QUEUE_URL"`
	AWSEndpoint          string `mapstructure:"AWS_ENDPOINT"`
	IsLocalDev           bool   `mapstructure:"IS_LOCAL_DEV"`
	APIKey               string `mapstructure:"API_KEY"`
	EmailSender          string `mapstructure:"EMAIL_SENDER"`
	Timezone             string `mapstructure:"TIMEZONE"`
	ArrivalOpenBeforeMin int    `mapstructure:"ARRIVAL_OPEN_BEFORE_MIN"`
	ArrivalCloseAfterMin int    `mapstructure:"ARRIVAL_CLOSE_AFTER_MIN"`
	DepartOpenBeforeMin  int    `mapstructure:"DEPARTURE_OPEN_BEFORE_MIN"`
	DepartCloseAfterMin  int    `mapstructure:"DEPARTURE_CLOSE_AFTER_MIN"`
	VeryLateDepartureMin int    `mapstructure:"VERY_LATE_DEPARTURE_MIN"`
	MaxDeliveryRetries   int    `mapstructure:"MAX_DELIVERY_RETRIES"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig() (config Config, err error) {
	viper.SetDefault("DB_HOST", "db")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "attendance_db")
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("AWS_REGION", "us-east-1") // Default region for AWS services
	viper.SetDefault("DELIVERY_SQS_QUEUE_URL", "http://localstack:4566/000000000000/token-delivery-queue")
	viper.SetDefault("AWS_ENDPOINT", "http://localstack:4566")
	viper.SetDefault("IS_LOCAL_DEV", false)
	viper.SetDefault("API_KEY", "dev-api-key")
	viper.SetDefault("EMAIL_SENDER", "tokens@attendance-service.com")
	viper.SetDefault("TIMEZONE", "Europe/Bucharest")
	// Validity-window widths around the scheduled boundary, wider after than
	// before. Operational knobs, not invariants.
	viper.SetDefault("ARRIVAL_OPEN_BEFORE_MIN", 45)
	viper.SetDefault("ARRIVAL_CLOSE_AFTER_MIN", 150)
	viper.SetDefault("DEPARTURE_OPEN_BEFORE_MIN", 90)
	viper.SetDefault("DEPARTURE_CLOSE_AFTER_MIN", 120)
	viper.SetDefault("VERY_LATE_DEPARTURE_MIN", 30)
	viper.SetDefault("MAX_DELIVERY_RETRIES", 5)

	// Read in environment variables that match the keys.
	viper.AutomaticEnv()

	err = viper.Unmarshal(&config)
	return
}
