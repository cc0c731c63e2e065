package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/xeoh/GCTool/pkg/ticket"
)

// UploadResponse is returned when a log is accepted.
type UploadResponse struct {
	Ticket int64 `json:"ticket"`
}

// AnalysisResponse reports the state of a ticket and, once completed, the
// analysis of its log.
type AnalysisResponse struct {
	Ticket  int64           `json:"ticket"`
	Status  ticket.Status   `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result,omitempty"`
}

// TicketResponse describes a ticket without its result.
type TicketResponse struct {
	*ticket.Ticket
	Message string `json:"message"`
}

// handleUpload stores the log from a multipart "file" field or the raw
// request body and queues it for analysis.
func (s *Server) handleUpload(c *fiber.Ctx) error {
	ctx := c.UserContext()

	fh, formErr := c.FormFile("file")
	var body []byte
	if formErr != nil {
		body = c.Body()
		if len(body) == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "no log uploaded: send a multipart \"file\" field or a raw body")
		}
	}

	name := c.Query("name")
	if name == "" && fh != nil {
		name = fh.Filename
	}
	name = filepath.Base(name)

	id, err := s.store.Issue(ctx)
	if err != nil {
		return err
	}
	log := s.logger.With(zap.Int64("ticket", id))

	path := filepath.Join(s.uploadDir, strconv.FormatInt(id, 10)+".log")
	var size int64
	if fh != nil {
		err = c.SaveFile(fh, path)
		size = fh.Size
	} else {
		err = os.WriteFile(path, body, 0o640)
		size = int64(len(body))
	}
	if err != nil {
		s.fail(c, id)
		return fmt.Errorf("storing upload: %w", err)
	}

	if name == "." || name == "" {
		name = filepath.Base(path)
	}
	if err := s.store.SetLogFile(ctx, id, path); err != nil {
		s.fail(c, id)
		return err
	}
	if err := s.store.SetMeta(ctx, id, ticket.Meta{Name: name, Size: size}); err != nil {
		s.fail(c, id)
		return err
	}

	log.Info("Log uploaded", zap.String("name", name), zap.Int64("size", size))
	s.runner.Submit(s.jobCtx, id)

	return c.Status(fiber.StatusAccepted).JSON(UploadResponse{Ticket: id})
}

func (s *Server) fail(c *fiber.Ctx, id int64) {
	if err := s.store.SetStatus(c.UserContext(), id, ticket.StatusError); err != nil {
		s.logger.Error("Failed to record upload error", zap.Int64("ticket", id), zap.Error(err))
	}
}

func (s *Server) handleAnalysis(c *fiber.Ctx) error {
	id, err := ticketParam(c)
	if err != nil {
		return err
	}
	ctx := c.UserContext()

	status, err := s.store.Status(ctx, id)
	if err != nil {
		return err
	}

	resp := AnalysisResponse{
		Ticket:  id,
		Status:  status,
		Message: status.Message(),
	}
	if status == ticket.StatusCompleted {
		result, err := s.store.Result(ctx, id)
		if err != nil {
			return err
		}
		resp.Result = result
	}

	return c.JSON(resp)
}

func (s *Server) handleTicket(c *fiber.Ctx) error {
	id, err := ticketParam(c)
	if err != nil {
		return err
	}

	t, err := s.store.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(TicketResponse{Ticket: t, Message: t.Status.Message()})
}

// handleDelete removes a ticket and its uploaded log. A ticket that is
// still being analyzed cannot be deleted.
func (s *Server) handleDelete(c *fiber.Ctx) error {
	id, err := ticketParam(c)
	if err != nil {
		return err
	}
	ctx := c.UserContext()

	t, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if t.Status == ticket.StatusAnalyzing {
		return fiber.NewError(fiber.StatusConflict, "ticket is being analyzed")
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	if t.LogFile != "" {
		if err := os.Remove(t.LogFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("Failed to remove uploaded log", zap.Int64("ticket", id), zap.Error(err))
		}
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func ticketParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("ticket"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("invalid ticket %q", c.Params("ticket")))
	}
	return id, nil
}
