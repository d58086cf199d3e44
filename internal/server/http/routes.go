package http

import (
	"github.com/dmitrijs2005/genesis/internal/common"
	"github.com/dmitrijs2005/genesis/internal/server/metrics"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
)

func (s *HTTPServer) routes() {
	s.app.Use(requestid.New(requestid.Config{
		Header:     common.RequestIDHeader,
		Generator:  uuid.NewString,
		ContextKey: requestIDKey,
	}))
	s.app.Use(s.accessLog)
	s.app.Use(recover.New())
	s.app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST",
	}))

	s.app.Get("/token", s.issueToken)
	s.app.Post("/token", s.issueTokenForClient)
	s.app.Post("/verify", s.verifyToken)
	s.app.Get("/headers", s.headers)
	s.app.Get("/health", s.health)
	s.app.Options("/health", s.health)
	s.app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
}
