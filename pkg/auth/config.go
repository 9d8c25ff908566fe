package auth

import "time"

// Config holds token signing settings.
type Config struct {
	Secret   string        `env:"JWT_SECRET,required"`
	Issuer   string        `env:"JWT_ISSUER" envDefault:"casekit"`
	Audience string        `env:"JWT_AUDIENCE"`
	TTL      time.Duration `env:"JWT_TTL" envDefault:"1h"`
	Leeway   time.Duration `env:"JWT_LEEWAY" envDefault:"30s"`
}
