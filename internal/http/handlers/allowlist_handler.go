package handlers

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gatechat/allowlist-api/internal/errs"
	"github.com/gatechat/allowlist-api/internal/http/dto"
	"github.com/gatechat/allowlist-api/internal/middleware"
	"github.com/gatechat/allowlist-api/internal/models"
	"github.com/gatechat/allowlist-api/internal/services"
)

type AllowlistHandler struct {
	allowlistService *services.AllowlistService
	importService    *services.ImportService
	log              *zap.Logger
}

func NewAllowlistHandler(allowlistService *services.AllowlistService, importService *services.ImportService, log *zap.Logger) *AllowlistHandler {
	return &AllowlistHandler{
		allowlistService: allowlistService,
		importService:    importService,
		log:              log,
	}
}

func (h *AllowlistHandler) List(c *fiber.Ctx) error {
	var status, search *string
	if v := c.Query("status"); v != "" {
		status = &v
	}
	if v := c.Query("search"); v != "" {
		search = &v
	}

	entries, err := h.allowlistService.List(c.Context(), status, search)
	if err != nil {
		return h.respondError(c, err)
	}
	if entries == nil {
		entries = []models.AllowedEmail{}
	}

	return c.JSON(dto.SuccessResponse{RequestID: middleware.GetRequestID(c), Data: entries})
}

func (h *AllowlistHandler) Create(c *fiber.Ctx) error {
	var req dto.CreateAllowlistRequest
	if err := c.BodyParser(&req); err != nil {
		return h.respondError(c, errs.New(errs.KindValidation, errs.CodeEmailRequired, "invalid request body"))
	}

	entry, err := h.allowlistService.Create(c.Context(), services.CreatePayload{
		Email:  req.Email,
		Status: req.Status,
		Label:  req.Label,
		Notes:  req.Notes,
	}, middleware.GetUserID(c), middleware.GetRequestID(c))
	if err != nil {
		return h.respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(dto.SuccessResponse{RequestID: middleware.GetRequestID(c), Data: entry})
}

func (h *AllowlistHandler) Update(c *fiber.Ctx) error {
	email, err := decodeEmailParam(c.Params("email"))
	if err != nil {
		return h.respondError(c, err)
	}

	var req dto.UpdateAllowlistRequest
	if err := c.BodyParser(&req); err != nil {
		return h.respondError(c, errs.New(errs.KindValidation, errs.CodeEmptyUpdate, "invalid request body"))
	}

	entry, err := h.allowlistService.Update(c.Context(), email, services.UpdatePayload{
		Status: req.Status,
		Label:  req.Label,
		Notes:  req.Notes,
	}, middleware.GetUserID(c), middleware.GetRequestID(c))
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(dto.SuccessResponse{RequestID: middleware.GetRequestID(c), Data: entry})
}

// Import accepts either a JSON body {csv, mode} or raw text/csv with a
// ?mode= query parameter. Mode defaults to insert.
func (h *AllowlistHandler) Import(c *fiber.Ctx) error {
	var csvText string
	var mode services.ImportMode

	contentType := string(c.Request().Header.ContentType())
	if strings.Contains(contentType, "application/json") {
		var req dto.ImportAllowlistRequest
		if err := c.BodyParser(&req); err != nil {
			return h.respondError(c, errs.New(errs.KindValidation, errs.CodeCSVEmpty, "invalid request body"))
		}
		csvText = req.CSV
		mode = services.ParseMode(req.Mode)
	} else {
		csvText = string(c.Body())
		mode = services.ParseMode(c.Query("mode"))
	}

	records, err := h.importService.ParseCSV(csvText)
	if err != nil {
		return h.respondError(c, err)
	}

	result, err := h.importService.Import(c.Context(), records, mode, middleware.GetUserID(c), middleware.GetRequestID(c))
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(dto.SuccessResponse{RequestID: middleware.GetRequestID(c), Data: result})
}

func (h *AllowlistHandler) AuditHistory(c *fiber.Ctx) error {
	email, err := decodeEmailParam(c.Params("email"))
	if err != nil {
		return h.respondError(c, err)
	}

	limit := 50
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	entries, err := h.allowlistService.AuditHistory(c.Context(), email, limit)
	if err != nil {
		return h.respondError(c, err)
	}

	return c.JSON(dto.SuccessResponse{RequestID: middleware.GetRequestID(c), Data: entries})
}

func decodeEmailParam(raw string) (string, error) {
	email, err := url.QueryUnescape(raw)
	if err != nil || email == "" {
		return "", errs.New(errs.KindValidation, errs.CodeEmailRequired, "email parameter is required")
	}
	return email, nil
}

func (h *AllowlistHandler) respondError(c *fiber.Ctx, err error) error {
	requestID := middleware.GetRequestID(c)

	var appErr *errs.Error
	if !errors.As(err, &appErr) {
		h.log.Error("unexpected error", zap.String("request_id", requestID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{
			RequestID: requestID,
			Error:     dto.ErrorBody{Code: errs.CodeInternal, Message: "unexpected error"},
		})
	}

	if appErr.Kind == errs.KindInternal {
		h.log.Error("internal error",
			zap.String("request_id", requestID),
			zap.String("code", appErr.Code),
			zap.Error(appErr),
		)
	}

	return c.Status(httpStatus(appErr.Kind)).JSON(dto.ErrorResponse{
		RequestID: requestID,
		Error: dto.ErrorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
	})
}

func httpStatus(kind errs.Kind) int {
	switch kind {
	case errs.KindUnauthorized:
		return fiber.StatusUnauthorized
	case errs.KindForbidden:
		return fiber.StatusForbidden
	case errs.KindValidation:
		return fiber.StatusBadRequest
	case errs.KindConflict:
		return fiber.StatusConflict
	case errs.KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}
