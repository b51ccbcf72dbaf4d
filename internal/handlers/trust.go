package handlers

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/memohai/chatbridge/internal/trust"
)

// TrustView is the read-only operator view of the trust engine.
type TrustView interface {
	TrustedUsers() []trust.TrustedUser
	AuthorizedChannels() []trust.AuthorizedChannel
	PendingChallenges() []trust.PendingChallenge
}

type TrustHandler struct {
	engine TrustView
	logger *slog.Logger
}

func NewTrustHandler(log *slog.Logger, engine TrustView) *TrustHandler {
	return &TrustHandler{
		engine: engine,
		logger: log.With(slog.String("handler", "trust")),
	}
}

func (h *TrustHandler) Register(e *echo.Echo) {
	group := e.Group("/v1/trust")
	group.GET("/users", h.Users)
	group.GET("/channels", h.Channels)
	group.GET("/challenges", h.Challenges)
}

// Users godoc
// @Summary List trusted users
// @Tags trust
// @Success 200 {array} trust.TrustedUser
// @Router /v1/trust/users [get]
func (h *TrustHandler) Users(c echo.Context) error {
	return c.JSON(http.StatusOK, h.engine.TrustedUsers())
}

// Channels godoc
// @Summary List authorized channels
// @Tags trust
// @Success 200 {array} trust.AuthorizedChannel
// @Router /v1/trust/channels [get]
func (h *TrustHandler) Channels(c echo.Context) error {
	return c.JSON(http.StatusOK, h.engine.AuthorizedChannels())
}

// Challenges godoc
// @Summary List pending challenges with their codes
// @Description Out-of-band view for the operator who relays codes to users.
// @Tags trust
// @Success 200 {array} trust.PendingChallenge
// @Router /v1/trust/challenges [get]
func (h *TrustHandler) Challenges(c echo.Context) error {
	return c.JSON(http.StatusOK, h.engine.PendingChallenges())
}
