package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/fitgrid-app/backend-chat/internal/domain"
	"github.com/fitgrid-app/backend-chat/internal/dto"
	"github.com/fitgrid-app/backend-chat/internal/provider"
	"github.com/fitgrid-app/backend-chat/internal/service"
	"github.com/fitgrid-app/backend-chat/pkg/logger"
	"github.com/fitgrid-app/backend-chat/pkg/middleware"
	"github.com/fitgrid-app/backend-chat/pkg/response"
	"github.com/fitgrid-app/backend-chat/pkg/telemetry"
)

// RoomHandler handles room lifecycle HTTP requests
type RoomHandler struct {
	rooms    service.RoomService
	resolver service.ActorResolver
	log      *logger.Logger
}

// NewRoomHandler creates a new RoomHandler
func NewRoomHandler(rooms service.RoomService, resolver service.ActorResolver, log *logger.Logger) *RoomHandler {
	return &RoomHandler{rooms: rooms, resolver: resolver, log: log}
}

// RegisterRoutes registers room routes on the given router group
func (h *RoomHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rooms := rg.Group("/rooms")
	{
		rooms.GET("", h.ListRooms)
		rooms.POST("/direct", h.CreateDirectRoom)
		rooms.POST("/group", h.CreateGroupRoom)
		rooms.PUT("/:id/visibility", h.SetVisibility)
		rooms.POST("/:id/leave", h.LeaveRoom)
		rooms.DELETE("/:id", h.DeleteGroup)
		rooms.DELETE("/:id/messages", h.DeleteConversation)
		rooms.POST("/:id/members", h.AddMember)
		rooms.DELETE("/:id/members/:userID", h.RemoveMember)
	}
	rg.DELETE("/channels/:channelID", h.DeleteOrphanChannel)
}

// actor resolves the authenticated caller to a full user record
func (h *RoomHandler) actor(c *gin.Context) (*domain.User, bool) {
	userID, ok := middleware.GetUserID(c)
	if !ok || userID == "" {
		c.JSON(http.StatusUnauthorized, response.Unauthorized(""))
		return nil, false
	}
	user, err := h.resolver.Resolve(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			c.JSON(http.StatusUnauthorized, response.Unauthorized("Unknown user"))
			return nil, false
		}
		h.log.Error("failed to resolve actor", zap.String("user_id", userID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, response.InternalError(""))
		return nil, false
	}
	return user, true
}

// CreateDirectRoom handles POST /api/v1/rooms/direct
func (h *RoomHandler) CreateDirectRoom(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.CreateDirectRoom")
	defer span.End()

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req dto.CreateDirectRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	room, err := h.rooms.CreateDirectRoom(ctx, actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	span.SetAttributes(attribute.String("room.id", room.ID))
	middleware.SetAuditResourceID(c, room.ID)
	c.JSON(http.StatusCreated, response.Success(room))
}

// CreateGroupRoom handles POST /api/v1/rooms/group
func (h *RoomHandler) CreateGroupRoom(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.CreateGroupRoom")
	defer span.End()

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req dto.CreateGroupRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	room, err := h.rooms.CreateGroupRoom(ctx, actor, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	span.SetAttributes(attribute.String("room.id", room.ID))
	middleware.SetAuditResourceID(c, room.ID)
	c.JSON(http.StatusCreated, response.Success(room))
}

// ListRooms handles GET /api/v1/rooms
func (h *RoomHandler) ListRooms(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.ListRooms")
	defer span.End()

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var query dto.ListRoomsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	list, err := h.rooms.ListRooms(ctx, actor, &query)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paginated(list.Rooms, list.Page, list.Limit, int64(list.TotalCount)))
}

// SetVisibility handles PUT /api/v1/rooms/:id/visibility
func (h *RoomHandler) SetVisibility(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.SetVisibility")
	defer span.End()

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req dto.SetVisibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	roomID := c.Param("id")
	span.SetAttributes(attribute.String("room.id", roomID))
	middleware.SetAuditResourceID(c, roomID)

	result, err := h.rooms.SetHidden(ctx, actor, roomID, *req.Hidden)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

// LeaveRoom handles POST /api/v1/rooms/:id/leave
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.LeaveRoom")
	defer span.End()

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	// Body is optional; auto_hide defaults to true
	var req dto.LeaveRoomRequest
	_ = c.ShouldBindJSON(&req)
	autoHide := true
	if req.AutoHide != nil {
		autoHide = *req.AutoHide
	}

	roomID := c.Param("id")
	span.SetAttributes(attribute.String("room.id", roomID))
	middleware.SetAuditResourceID(c, roomID)

	result, err := h.rooms.LeaveRoom(ctx, actor, roomID, autoHide)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	middleware.SetAuditMetadata(c, map[string]interface{}{
		"remaining_members": result.RemainingMembers,
		"group_deleted":     result.GroupDeleted,
	})
	c.JSON(http.StatusOK, response.Success(result))
}

// DeleteGroup handles DELETE /api/v1/rooms/:id
func (h *RoomHandler) DeleteGroup(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.DeleteGroup")
	defer span.End()

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	hardDelete := c.Query("hard_delete") == "true"
	roomID := c.Param("id")
	span.SetAttributes(
		attribute.String("room.id", roomID),
		attribute.Bool("hard_delete", hardDelete))
	middleware.SetAuditResourceID(c, roomID)

	result, err := h.rooms.DeleteGroup(ctx, actor, roomID, hardDelete)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

// DeleteOrphanChannel handles DELETE /api/v1/channels/:channelID
func (h *RoomHandler) DeleteOrphanChannel(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.DeleteOrphanChannel")
	defer span.End()

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	channelID := c.Param("channelID")
	span.SetAttributes(attribute.String("channel.id", channelID))
	middleware.SetAuditResourceType(c, "channel")
	middleware.SetAuditResourceID(c, channelID)

	result, err := h.rooms.DeleteOrphanChannel(ctx, actor, channelID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

// DeleteConversation handles DELETE /api/v1/rooms/:id/messages
func (h *RoomHandler) DeleteConversation(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.DeleteConversation")
	defer span.End()

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	roomID := c.Param("id")
	span.SetAttributes(attribute.String("room.id", roomID))
	middleware.SetAuditResourceID(c, roomID)

	result, err := h.rooms.DeleteConversation(ctx, actor, roomID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(result))
}

// AddMember handles POST /api/v1/rooms/:id/members
func (h *RoomHandler) AddMember(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.AddMember")
	defer span.End()

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	var req dto.AddMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
		return
	}

	roomID := c.Param("id")
	span.SetAttributes(attribute.String("room.id", roomID))
	middleware.SetAuditResourceID(c, roomID)

	if err := h.rooms.AddMember(ctx, actor, roomID, req.UserID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"room_id": roomID, "user_id": req.UserID}))
}

// RemoveMember handles DELETE /api/v1/rooms/:id/members/:userID
func (h *RoomHandler) RemoveMember(c *gin.Context) {
	ctx, span := telemetry.StartSpan(c.Request.Context(), "handler.RemoveMember")
	defer span.End()

	actor, ok := h.actor(c)
	if !ok {
		return
	}

	roomID := c.Param("id")
	userID := c.Param("userID")
	span.SetAttributes(attribute.String("room.id", roomID))
	middleware.SetAuditResourceID(c, roomID)

	if err := h.rooms.RemoveMember(ctx, actor, roomID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(gin.H{"room_id": roomID, "user_id": userID}))
}

// handleServiceError maps service errors to HTTP responses
func (h *RoomHandler) handleServiceError(c *gin.Context, err error) {
	var notEmpty *service.GroupNotEmptyError
	switch {
	case errors.As(err, &notEmpty):
		c.JSON(http.StatusConflict, response.ErrorWithDetails(
			response.ErrCodeGroupNotEmpty,
			"Group still has active members",
			map[string]string{"remaining_members": strconv.Itoa(notEmpty.Remaining)},
		))
	case errors.Is(err, service.ErrRoomNotFound),
		errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, provider.ErrChannelNotFound):
		c.JSON(http.StatusNotFound, response.NotFound(err.Error()))
	case errors.Is(err, service.ErrNoPermission),
		errors.Is(err, service.ErrNotAMember),
		errors.Is(err, service.ErrCrossTenantChannel),
		errors.Is(err, service.ErrCrossTenantUser):
		c.JSON(http.StatusForbidden, response.Forbidden(err.Error()))
	case errors.Is(err, service.ErrNotDirectChat),
		errors.Is(err, service.ErrNotGroupChat),
		errors.Is(err, service.ErrEventChannelImmutable),
		errors.Is(err, service.ErrCannotChatWithSelf),
		errors.Is(err, domain.ErrInvalidChannelID):
		c.JSON(http.StatusBadRequest, response.BadRequest(err.Error()))
	case errors.Is(err, service.ErrOrphanConflict):
		c.JSON(http.StatusConflict, response.Error(response.ErrCodeOrphanConflict, err.Error()))
	case errors.Is(err, service.ErrRoomClosed):
		c.JSON(http.StatusGone, response.Error(response.ErrCodeRoomClosed, err.Error()))
	case errors.Is(err, provider.ErrUnavailable):
		c.JSON(http.StatusServiceUnavailable, response.Error(response.ErrCodeProviderDown,
			"Channel provider is unavailable; retry later"))
	default:
		h.log.Error("unhandled service error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, response.InternalError(""))
	}
}
