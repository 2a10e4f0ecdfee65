package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"time"

	"ai-tutor-be/internal/dto"
	"ai-tutor-be/internal/pkg/logger"
	"ai-tutor-be/internal/pkg/serverutils"
	"ai-tutor-be/internal/service"
	"ai-tutor-be/pkg/stream"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

type ITutorController interface {
	RegisterRoutes(r fiber.Router)
	Ask(ctx *fiber.Ctx) error
	Upload(ctx *fiber.Ctx) error
}

type tutorController struct {
	tutorService    service.ITutorService
	disconnectGrace time.Duration
	log             logger.ILogger
}

func NewTutorController(tutorService service.ITutorService, disconnectGrace time.Duration, log logger.ILogger) ITutorController {
	return &tutorController{
		tutorService:    tutorService,
		disconnectGrace: disconnectGrace,
		log:             log,
	}
}

func (c *tutorController) RegisterRoutes(r fiber.Router) {
	h := r.Group("/tutor/v1")
	h.Use(serverutils.JwtMiddleware)
	h.Post("ask", c.Ask)
	h.Post("files", c.Upload)
}

// Ask runs one tutoring turn and streams the answer as server-sent
// events, one wire chunk per event.
func (c *tutorController) Ask(ctx *fiber.Ctx) error {
	userIdStr, _ := ctx.Locals("user_id").(string)
	userId, _ := uuid.Parse(userIdStr)

	var req dto.AskRequest
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}

	if err := serverutils.ValidateRequest(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	// The stream outlives the fiber handler, so it gets its own context.
	// Cancellation happens on client disconnect, after the grace delay.
	streamCtx, cancel := context.WithCancel(context.Background())

	chunks, err := c.tutorService.Ask(streamCtx, userId, &req)
	if err != nil {
		cancel()
		return err
	}

	ctx.Set("Content-Type", "text/event-stream")
	ctx.Set("Cache-Control", "no-cache")
	ctx.Set("Connection", "keep-alive")
	ctx.Set("X-Accel-Buffering", "no")

	ctx.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		c.streamChunks(w, chunks, cancel)
	}))

	return nil
}

// streamChunks serializes wire chunks as SSE frames until the channel
// closes. A write or flush failure means the client is gone: pulling
// stops and the pipeline is shut down after the grace period.
func (c *tutorController) streamChunks(w *bufio.Writer, chunks <-chan stream.Chunk, cancel context.CancelFunc) {
	defer cancel()

	for chunk := range chunks {
		payload, err := json.Marshal(chunk)
		if err != nil {
			c.log.Error("tutor", "failed to marshal stream chunk", map[string]interface{}{
				"error": err.Error(),
			})
			continue
		}

		if _, err := w.WriteString("data: "); err != nil {
			c.drainAfterDisconnect(chunks, cancel, c.disconnectGrace)
			return
		}
		if _, err := w.Write(payload); err != nil {
			c.drainAfterDisconnect(chunks, cancel, c.disconnectGrace)
			return
		}
		if _, err := w.WriteString("\n\n"); err != nil {
			c.drainAfterDisconnect(chunks, cancel, c.disconnectGrace)
			return
		}
		if err := w.Flush(); err != nil {
			c.drainAfterDisconnect(chunks, cancel, c.disconnectGrace)
			return
		}
	}
}

// drainAfterDisconnect keeps the pipeline alive for the grace period so
// a reconnecting client does not kill an almost-finished generation, then
// cancels and drains remaining chunks to unblock the orchestrator.
func (c *tutorController) drainAfterDisconnect(chunks <-chan stream.Chunk, cancel context.CancelFunc, grace time.Duration) {
	time.Sleep(grace)
	cancel()
	for range chunks {
	}
}

// Upload stores one learner document and returns its file id for later
// ask requests.
func (c *tutorController) Upload(ctx *fiber.Ctx) error {
	fileHeader, err := ctx.FormFile("file")
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "File is required")
	}

	f, err := fileHeader.Open()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Cannot read file")
	}
	defer f.Close()

	content, err := io.ReadAll(f)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Cannot read file")
	}

	file, err := c.tutorService.UploadFile(ctx.Context(), fileHeader.Filename, fileHeader.Header.Get("Content-Type"), content)
	if err != nil {
		return err
	}

	return ctx.JSON(serverutils.SuccessResponse("File stored", fiber.Map{
		"fileId":      file.FileId,
		"fileName":    file.FileName,
		"sizeBytes":   file.SizeBytes,
		"storageMode": file.StorageMode,
	}))
}
