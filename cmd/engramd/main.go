// Command engramd runs the Engram cognition service.
package main

import (
	"github.com/sirupsen/logrus"

	"github.com/engramlabs/engram-go/pkg/core"
	"github.com/engramlabs/engram-go/pkg/server"
)

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	config, err := core.LoadConfigFromEnv()
	if err != nil {
		log.WithError(err).Fatal("load configuration")
	}

	service, err := core.NewService(config)
	if err != nil {
		log.WithError(err).Fatal("start service")
	}
	defer func() { _ = service.Close() }()

	log.WithFields(logrus.Fields{
		"database": config.Database.Provider,
		"embedder": config.Embedder.Provider,
		"llm":      config.LLM != nil,
	}).Info("engram service ready")

	srv := server.New(service, &config.Server, log)
	if err := srv.Run(); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
