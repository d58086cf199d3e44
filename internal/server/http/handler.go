package http

import (
	"errors"
	"sort"
	"strings"

	"github.com/dmitrijs2005/genesis/internal/common"
	"github.com/dmitrijs2005/genesis/internal/netx"
	"github.com/dmitrijs2005/genesis/internal/server/services"
	"github.com/gofiber/fiber/v2"
)

type clientRequest struct {
	UUID string `json:"uuid" validate:"required,uuid"`
}

type verifyRequest struct {
	Token string `json:"token" validate:"required"`
}

type tokenResponse struct {
	Token   string `json:"token"`
	Expires *int64 `json:"expires,omitempty"`
}

// issueToken handles GET /token with an optional client_id query parameter.
func (s *HTTPServer) issueToken(c *fiber.Ctx) error {
	var clientID *string
	if v := c.Query("client_id"); v != "" {
		clientID = &v
	}
	return s.issue(c, clientID)
}

// issueTokenForClient handles POST /token with a JSON body {"uuid": "..."}.
func (s *HTTPServer) issueTokenForClient(c *fiber.Ctx) error {
	var req clientRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid client id")
	}
	return s.issue(c, &req.UUID)
}

func (s *HTTPServer) issue(c *fiber.Ctx, clientID *string) error {
	issued, err := s.tokens.Issue(c.UserContext(), clientID, s.origin(c))
	if err != nil {
		if errors.Is(err, common.ErrInvalidClientID) {
			return fiber.NewError(fiber.StatusBadRequest, "invalid client id")
		}
		return err
	}

	resp := tokenResponse{Token: issued.Token}
	if issued.ExpiresAt != nil {
		exp := issued.ExpiresAt.Unix()
		resp.Expires = &exp
	}
	return c.Status(fiber.StatusOK).JSON(resp)
}

// verifyToken handles POST /verify: 202 when valid, 403 when unknown or
// expired, 400 when malformed.
func (s *HTTPServer) verifyToken(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := s.validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "token is required")
	}

	outcome, err := s.tokens.Verify(c.UserContext(), req.Token)
	if err != nil {
		if errors.Is(err, common.ErrMalformedToken) {
			return fiber.NewError(fiber.StatusBadRequest, "malformed token")
		}
		return err
	}

	if outcome != services.VerifyValid {
		return fiber.NewError(fiber.StatusForbidden, "token expired or invalid")
	}
	return c.SendStatus(fiber.StatusAccepted)
}

// headers dumps the received request headers as "name: value" lines.
func (s *HTTPServer) headers(c *fiber.Ctx) error {
	var lines []string
	c.Request().Header.VisitAll(func(k, v []byte) {
		lines = append(lines, string(k)+": "+string(v))
	})
	sort.Strings(lines)

	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return c.Status(fiber.StatusOK).SendString(b.String())
}

// health reports 200 when the database answers a ping and 503 otherwise.
func (s *HTTPServer) health(c *fiber.Ctx) error {
	if err := s.db.Ping(c.UserContext()); err != nil {
		s.logger.Warn(c.UserContext(), "health check failed", "error", err)
		return c.SendStatus(fiber.StatusServiceUnavailable)
	}
	return c.SendStatus(fiber.StatusOK)
}

func (s *HTTPServer) origin(c *fiber.Ctx) services.Origin {
	return services.Origin{
		IP:        netx.ClientIP(c.Get(common.ForwardedForHeader), c.Get(s.ipHeader)),
		Country:   netx.Optional(c.Get(s.countryHeader)),
		UserAgent: netx.Optional(c.Get(common.UserAgentHeader)),
	}
}
