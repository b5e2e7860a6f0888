package controller

import (
	"errors"

	"property-insight-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type ISessionController interface {
	RegisterRoutes(r fiber.Router)
	Show(ctx *fiber.Ctx) error
}

type sessionController struct {
	sessionService service.ISessionService
}

func NewSessionController(sessionService service.ISessionService) ISessionController {
	return &sessionController{
		sessionService: sessionService,
	}
}

func (c *sessionController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/session")
	h.Get(":sessionId", c.Show)
}

// Show serves the session snapshot as the engine reported it. basic=true
// returns the summary projection; debug=true bypasses the cache.
func (c *sessionController) Show(ctx *fiber.Ctx) error {
	sessionId := ctx.Params("sessionId")

	res, err := c.sessionService.Get(ctx.UserContext(), sessionId, service.GetOptions{
		SkipCache: ctx.QueryBool("debug", false),
		BasicOnly: ctx.QueryBool("basic", false),
	})
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Session not found"})
		}
		return err
	}

	ctx.Set("X-Session-Source", string(res.Source))
	if res.Basic != nil {
		return ctx.JSON(res.Basic)
	}

	ctx.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	return ctx.Send(res.Session.Raw())
}
