package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"travel-agent/internal/domain"
	"travel-agent/internal/usecase"
)

const (
	correlationHeader = "X-Correlation-Id"
	chatPath          = "/chat"
	conversationParam = "conversationId"
)

// ChatUseCase is the service the HTTP surface drives.
type ChatUseCase interface {
	Chat(ctx context.Context, in usecase.ChatInput) (usecase.ChatOutput, error)
	Transcript(ctx context.Context, conversationID string) ([]domain.Message, error)
}

type Handler struct {
	uc       ChatUseCase
	validate *validator.Validate
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversationId" validate:"omitempty,max=128,printascii,excludes=/"`
}

type chatResponse struct {
	ConversationID string              `json:"conversationId"`
	Reply          string              `json:"reply"`
	NextQuestion   string              `json:"nextQuestion,omitempty"`
	Results        domain.Results      `json:"results"`
	Trace          []domain.TraceEntry `json:"trace"`
}

type transcriptMessage struct {
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	CreatedAt string          `json:"createdAt"`
	Trace     json.RawMessage `json:"trace,omitempty"`
}

type transcriptResponse struct {
	ConversationID string              `json:"conversationId"`
	Messages       []transcriptMessage `json:"messages"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func NewHandler(uc ChatUseCase) (*Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}
	return &Handler{uc: uc, validate: validator.New(validator.WithRequiredStructEnabled())}, nil
}

// Handle serves POST /chat and GET /chat/{conversationId} behind an API
// Gateway proxy integration.
func (h *Handler) Handle(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	corrID := correlationID(req.Headers)
	logger := slog.With("correlation_id", corrID)

	path := strings.TrimRight(req.Path, "/")
	convID := strings.TrimSpace(req.PathParameters[conversationParam])
	if convID == "" && strings.HasPrefix(path, chatPath+"/") {
		convID = strings.TrimPrefix(path, chatPath+"/")
	}

	switch {
	case path == chatPath && req.HTTPMethod == http.MethodPost:
		return h.chat(ctx, logger, corrID, req)
	case convID != "" && req.HTTPMethod == http.MethodGet:
		return h.transcript(ctx, logger, corrID, convID)
	case path == chatPath || convID != "":
		return jsonResponse(http.StatusMethodNotAllowed, corrID, errorResponse{Error: "METHOD_NOT_ALLOWED", Reason: req.HTTPMethod})
	default:
		return jsonResponse(http.StatusNotFound, corrID, errorResponse{Error: string(usecase.ErrorNotFound), Reason: "route_not_found"})
	}
}

func (h *Handler) chat(ctx context.Context, logger *slog.Logger, corrID string, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	body := req.Body
	if req.IsBase64Encoded {
		raw, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return badRequest(corrID, "invalid_body_encoding")
		}
		body = string(raw)
	}

	var in chatRequest
	if err := json.Unmarshal([]byte(body), &in); err != nil {
		logger.WarnContext(ctx, "invalid request body", "err", err)
		return badRequest(corrID, "invalid_json")
	}
	if err := h.validate.Struct(in); err != nil {
		logger.WarnContext(ctx, "request validation failed", "err", err)
		return badRequest(corrID, "invalid_conversation_id")
	}

	out, err := h.uc.Chat(ctx, usecase.ChatInput{Message: in.Message, ConversationID: in.ConversationID})
	if err != nil {
		return errorToResponse(ctx, logger, corrID, err)
	}

	trace := out.Trace
	if trace == nil {
		trace = []domain.TraceEntry{}
	}
	return jsonResponse(http.StatusOK, corrID, chatResponse{
		ConversationID: out.ConversationID,
		Reply:          out.Reply,
		NextQuestion:   out.NextQuestion,
		Results:        out.Results,
		Trace:          trace,
	})
}

func (h *Handler) transcript(ctx context.Context, logger *slog.Logger, corrID, convID string) (events.APIGatewayProxyResponse, error) {
	msgs, err := h.uc.Transcript(ctx, convID)
	if err != nil {
		return errorToResponse(ctx, logger, corrID, err)
	}

	resp := transcriptResponse{ConversationID: convID, Messages: make([]transcriptMessage, 0, len(msgs))}
	for _, m := range msgs {
		tm := transcriptMessage{Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt}
		if m.Meta != "" && json.Valid([]byte(m.Meta)) {
			tm.Trace = json.RawMessage(m.Meta)
		}
		resp.Messages = append(resp.Messages, tm)
	}
	return jsonResponse(http.StatusOK, corrID, resp)
}

func errorToResponse(ctx context.Context, logger *slog.Logger, corrID string, err error) (events.APIGatewayProxyResponse, error) {
	var ucErr *usecase.Error
	if !errors.As(err, &ucErr) {
		logger.ErrorContext(ctx, "unexpected error", "err", err)
		return jsonResponse(http.StatusInternalServerError, corrID, errorResponse{Error: string(usecase.ErrorInternal)})
	}

	status := http.StatusInternalServerError
	switch ucErr.Code {
	case usecase.ErrorInvalidInput:
		status = http.StatusBadRequest
	case usecase.ErrorNotFound:
		status = http.StatusNotFound
	case usecase.ErrorConflict:
		status = http.StatusConflict
	}
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(ctx, "request failed", "code", ucErr.Code, "reason", ucErr.Reason, "err", ucErr.Err)
	} else {
		logger.InfoContext(ctx, "request rejected", "code", ucErr.Code, "reason", ucErr.Reason)
	}
	return jsonResponse(status, corrID, errorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason})
}

func badRequest(corrID, reason string) (events.APIGatewayProxyResponse, error) {
	return jsonResponse(http.StatusBadRequest, corrID, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: reason})
}

func jsonResponse(status int, corrID string, v any) (events.APIGatewayProxyResponse, error) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: corrID,
		},
		Body: string(body),
	}, nil
}

// correlationID reuses the caller's id when present, matching the header name
// case-insensitively.
func correlationID(headers map[string]string) string {
	for k, v := range headers {
		if strings.EqualFold(k, correlationHeader) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return uuid.NewString()
}
