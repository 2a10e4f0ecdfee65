package controller

import (
	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/pkg/serverutils"
	"ai-tutor-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type ICurriculumController interface {
	RegisterRoutes(r fiber.Router)
	Ingest(ctx *fiber.Ctx) error
	Delete(ctx *fiber.Ctx) error
	Count(ctx *fiber.Ctx) error
}

type curriculumController struct {
	curriculumService service.ICurriculumService
}

func NewCurriculumController(curriculumService service.ICurriculumService) ICurriculumController {
	return &curriculumController{
		curriculumService: curriculumService,
	}
}

func (c *curriculumController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/curriculum/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("ingest", c.Ingest)
	h.Get("count", c.Count)
	h.Delete(":id", c.Delete)
}

func (c *curriculumController) Ingest(ctx *fiber.Ctx) error {
	var req dto.IngestCurriculumRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	indexed, err := c.curriculumService.Ingest(ctx.Context(), &req)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Fragments indexed", dto.IngestCurriculumResponse{Indexed: indexed}))
}

func (c *curriculumController) Delete(ctx *fiber.Ctx) error {
	id, err := uuid.Parse(ctx.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid chunk id")
	}

	if err := c.curriculumService.DeleteChunk(ctx.Context(), id); err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse[any]("Chunk deleted", nil))
}

func (c *curriculumController) Count(ctx *fiber.Ctx) error {
	level := ctx.Query("level")
	subject := ctx.Query("subject")

	count, err := c.curriculumService.CountChunks(ctx.Context(), level, subject)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("Chunk count", fiber.Map{"count": count}))
}
