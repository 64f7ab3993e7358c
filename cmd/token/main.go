// Command token issues a JWT for a service integration, such as the
// WhatsApp intake bot, or for a staff user during local development.
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/hackgods/medical-office-scheduling/internal/app"
	"github.com/hackgods/medical-office-scheduling/internal/auth"
	"github.com/hackgods/medical-office-scheduling/internal/config"
)

func main() {
	audience := flag.String("audience", auth.AudienceService, "token audience: service or staff")
	subject := flag.String("subject", "whatsapp-bot", "token subject")
	email := flag.String("email", "", "email claim, used for staff tokens")
	ttl := flag.Duration("ttl", 365*24*time.Hour, "token lifetime")
	flag.Parse()

	cfg, err := config.Load()
	logger := app.NewLogger(cfg, "token")
	if err != nil {
		logger.Fatal().Err(err).Msg("config load error")
	}

	if *audience != auth.AudienceService && *audience != auth.AudienceStaff {
		logger.Fatal().Str("audience", *audience).Msg("unknown audience")
	}

	tok, err := auth.NewSigner(cfg.JWTSecret).Issue(*subject, *audience, *email, *ttl)
	if err != nil {
		logger.Fatal().Err(err).Msg("issue token")
	}
	fmt.Println(tok)
}
