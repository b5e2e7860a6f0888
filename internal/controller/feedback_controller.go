package controller

import (
	"property-insight-be/internal/dto"
	"property-insight-be/internal/pkg/serverutils"
	"property-insight-be/internal/service"

	"github.com/gofiber/fiber/v2"
)

type IFeedbackController interface {
	RegisterRoutes(r fiber.Router)
	SubmitSectionFeedback(ctx *fiber.Ctx) error
	SubmitStarRating(ctx *fiber.Ctx) error
	GetSectionFeedback(ctx *fiber.Ctx) error
	GetStarRatings(ctx *fiber.Ctx) error
	GetAggregate(ctx *fiber.Ctx) error
	GetTriggers(ctx *fiber.Ctx) error
}

type feedbackController struct {
	feedbackService service.IFeedbackService
}

func NewFeedbackController(feedbackService service.IFeedbackService) IFeedbackController {
	return &feedbackController{
		feedbackService: feedbackService,
	}
}

func (c *feedbackController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/feedback")
	h.Post("simple", c.SubmitSectionFeedback)
	h.Get("simple", c.GetSectionFeedback)
	h.Post("stars", c.SubmitStarRating)
	h.Get("stars", c.GetStarRatings)
	h.Get("aggregate/:sessionId", c.GetAggregate)
	h.Get("triggers", c.GetTriggers)
}

func (c *feedbackController) SubmitSectionFeedback(ctx *fiber.Ctx) error {
	var req dto.SectionFeedbackRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.feedbackService.SubmitSectionFeedback(ctx.UserContext(), &req, serverutils.CallerID(ctx))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Feedback recorded", res))
}

func (c *feedbackController) SubmitStarRating(ctx *fiber.Ctx) error {
	var req dto.StarRatingRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(serverutils.ErrorResponse(400, "Invalid request body"))
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	res, err := c.feedbackService.SubmitStarRating(ctx.UserContext(), &req, serverutils.CallerID(ctx))
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Rating recorded", res))
}

// GetSectionFeedback lists matching feedback when filtered, otherwise
// returns global stats.
func (c *feedbackController) GetSectionFeedback(ctx *fiber.Ctx) error {
	sessionId := ctx.Query("sessionId")
	sectionId := ctx.Query("sectionId")

	if sessionId == "" && sectionId == "" {
		res, err := c.feedbackService.GetSectionFeedbackStats(ctx.UserContext())
		if err != nil {
			return err
		}
		return ctx.JSON(serverutils.SuccessResponse("Success get feedback stats", res))
	}

	res, err := c.feedbackService.ListSectionFeedback(ctx.UserContext(), sessionId, sectionId)
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get feedback", res))
}

func (c *feedbackController) GetStarRatings(ctx *fiber.Ctx) error {
	res, err := c.feedbackService.ListStarRatings(ctx.UserContext(), ctx.Query("sessionId"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get ratings", res))
}

func (c *feedbackController) GetAggregate(ctx *fiber.Ctx) error {
	res, err := c.feedbackService.GetAggregate(ctx.UserContext(), ctx.Params("sessionId"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get aggregate", res))
}

func (c *feedbackController) GetTriggers(ctx *fiber.Ctx) error {
	res, err := c.feedbackService.ListTriggers(ctx.UserContext(), ctx.Query("sessionId"))
	if err != nil {
		return err
	}
	return ctx.JSON(serverutils.SuccessResponse("Success get triggers", res))
}
