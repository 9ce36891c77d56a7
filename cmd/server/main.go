package main

import (
	"github.com/rs/zerolog/log"

	"offer-config-engine/internal/app/server"
	"offer-config-engine/internal/config"
)

func main() {
	cfg := config.Load()
	config.SetupLogging(cfg.Server.LogLevel, cfg.Server.LogJSON)

	if err := server.Run(cfg); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
