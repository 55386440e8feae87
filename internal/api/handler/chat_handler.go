package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aicompanion/companion/internal/api/metrics"
	"github.com/aicompanion/companion/internal/core/domain"
	"github.com/aicompanion/companion/internal/core/ports"
)

// HeaderDeviceID identifies anonymous chat clients.
const HeaderDeviceID = "X-Device-ID"

type ChatHandler struct {
	chatService ports.ChatService
}

func NewChatHandler(chatService ports.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type chatRequest struct {
	Text string `json:"text" validate:"required"`
}

type chatResponse struct {
	UserMessage domain.Message `json:"user_message"`
	Reply       domain.Message `json:"reply"`
	// Remaining is omitted for signed-in callers, who are not metered.
	Remaining *int `json:"remaining,omitempty"`
}

// Greeting returns the assistant's opening message.
//
// @Summary      Chat greeting
// @Tags         chat
// @Produce      json
// @Success      200  {object}  domain.Message
// @Router       /v1/chat/greeting [get]
func (h *ChatHandler) Greeting(c echo.Context) error {
	return c.JSON(http.StatusOK, h.chatService.Greeting())
}

type allowanceResponse struct {
	Unlimited bool `json:"unlimited"`
	Remaining *int `json:"remaining,omitempty"`
}

// Allowance reports how many anonymous turns the caller has left.
//
// @Summary      Anonymous chat allowance
// @Tags         chat
// @Produce      json
// @Param        X-Device-ID  header    string  false  "Anonymous device identifier"
// @Success      200          {object}  allowanceResponse
// @Failure      400          {object}  map[string]string
// @Router       /v1/chat/allowance [get]
func (h *ChatHandler) Allowance(c echo.Context) error {
	userID, _ := c.Get("user_id").(string)
	remaining, err := h.chatService.Allowance(c.Request().Context(), ports.ChatInput{
		UserID:   userID,
		DeviceID: c.Request().Header.Get(HeaderDeviceID),
	})
	if err != nil {
		return err
	}
	if remaining < 0 {
		return c.JSON(http.StatusOK, allowanceResponse{Unlimited: true})
	}
	return c.JSON(http.StatusOK, allowanceResponse{Remaining: &remaining})
}

// Send answers one chat turn. Anonymous callers identify their device with
// the X-Device-ID header and are limited to a small number of turns.
//
// @Summary      Send a chat message
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        X-Device-ID  header    string       false  "Anonymous device identifier"
// @Param        body         body      chatRequest  true   "Message"
// @Success      200          {object}  chatResponse
// @Failure      400          {object}  map[string]string
// @Failure      429          {object}  map[string]string
// @Router       /v1/chat [post]
func (h *ChatHandler) Send(c echo.Context) error {
	var req chatRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	userID, _ := c.Get("user_id").(string)
	in := ports.ChatInput{
		UserID:   userID,
		DeviceID: c.Request().Header.Get(HeaderDeviceID),
		Text:     req.Text,
	}
	res, err := h.chatService.Send(c.Request().Context(), in)
	if errors.Is(err, domain.ErrChatQuotaExceeded) {
		metrics.ChatQuotaExceededTotal.Inc()
		return err
	}
	if err != nil {
		return err
	}

	resp := chatResponse{UserMessage: res.UserMessage, Reply: res.Reply}
	caller := "authenticated"
	if res.Remaining >= 0 {
		remaining := res.Remaining
		resp.Remaining = &remaining
		caller = "anonymous"
	}
	metrics.ChatMessagesTotal.WithLabelValues(caller).Inc()
	return c.JSON(http.StatusOK, resp)
}
