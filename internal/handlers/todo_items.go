package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"todo-app/backend/internal/middleware"
	"todo-app/backend/internal/models"
	"todo-app/backend/internal/repositories"
	"todo-app/backend/internal/services"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

type TodoItemHandler struct {
	service  services.TodoItemService
	renderer Renderer
	logger   *log.Logger
	basePath string
}

func NewTodoItemHandler(service services.TodoItemService, renderer Renderer, logger *log.Logger) *TodoItemHandler {
	if renderer == nil {
		renderer = JSONRenderer{}
	}
	return &TodoItemHandler{
		service:  service,
		renderer: renderer,
		logger:   logger,
		basePath: "/tasks",
	}
}

// RegisterRoutes mounts the todo item pages on rg. Authentication and
// anti-forgery checks are expected to be installed on rg by the caller.
func (h *TodoItemHandler) RegisterRoutes(rg gin.IRoutes) {
	rg.GET("/tasks", h.Index)
	rg.GET("/tasks/new", h.New)
	rg.POST("/tasks", h.Create)
	rg.GET("/tasks/:id", h.Details)
	rg.GET("/tasks/:id/edit", h.Edit)
	rg.POST("/tasks/:id", h.Update)
	rg.GET("/tasks/:id/delete", h.ConfirmDelete)
	rg.POST("/tasks/:id/delete", h.Delete)
	rg.POST("/tasks/:id/toggle", h.ToggleDone)
}

func (h *TodoItemHandler) Index(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}

	items, err := h.service.List(c.Request.Context(), ownerID)
	if err != nil {
		h.handleTodoItemError(c, err)
		return
	}
	h.renderer.Render(c, http.StatusOK, ViewIndex, IndexView{Items: items})
}

func (h *TodoItemHandler) New(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}
	h.renderer.Render(c, http.StatusOK, ViewCreate, FormView{})
}

func (h *TodoItemHandler) Create(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}

	var form TodoItemForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	input, verr := form.toInput(ownerID)
	if verr != nil {
		h.renderInvalid(c, ViewCreate, form, verr)
		return
	}

	if _, err := h.service.Create(c.Request.Context(), ownerID, input); err != nil {
		var validation *models.ValidationError
		if errors.As(err, &validation) {
			h.renderInvalid(c, ViewCreate, form, validation)
			return
		}
		h.handleTodoItemError(c, err)
		return
	}

	c.Redirect(http.StatusFound, h.basePath)
}

func (h *TodoItemHandler) Details(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := h.itemID(c)
	if !ok {
		return
	}

	item, err := h.service.Get(c.Request.Context(), id, ownerID)
	if err != nil {
		h.handleTodoItemError(c, err)
		return
	}
	h.renderer.Render(c, http.StatusOK, ViewDetails, item)
}

func (h *TodoItemHandler) Edit(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := h.itemID(c)
	if !ok {
		return
	}

	item, err := h.service.GetForOwner(c.Request.Context(), id, ownerID)
	if err != nil {
		h.handleTodoItemError(c, err)
		return
	}
	h.renderer.Render(c, http.StatusOK, ViewEdit, FormView{Form: formFromItem(item)})
}

func (h *TodoItemHandler) Update(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := h.itemID(c)
	if !ok {
		return
	}

	var form TodoItemForm
	if err := c.ShouldBind(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if form.ID != id {
		h.notFound(c)
		return
	}

	input, verr := form.toInput(ownerID)
	if verr != nil {
		h.renderInvalid(c, ViewEdit, form, verr)
		return
	}

	_, err := h.service.Update(c.Request.Context(), ownerID, id, input)
	if err != nil {
		var validation *models.ValidationError
		var conflict *services.ConflictError
		switch {
		case errors.As(err, &validation):
			h.renderInvalid(c, ViewEdit, form, validation)
		case errors.As(err, &conflict):
			h.renderer.Render(c, http.StatusConflict, ViewEdit, FormView{
				Form:    formFromItem(conflict.Current),
				Message: conflict.Message,
			})
		default:
			h.handleTodoItemError(c, err)
		}
		return
	}

	c.Redirect(http.StatusFound, h.basePath)
}

func (h *TodoItemHandler) ConfirmDelete(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := h.itemID(c)
	if !ok {
		return
	}

	item, err := h.service.GetForOwner(c.Request.Context(), id, ownerID)
	if err != nil {
		h.handleTodoItemError(c, err)
		return
	}
	h.renderer.Render(c, http.StatusOK, ViewDelete, item)
}

func (h *TodoItemHandler) Delete(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := h.itemID(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), id, ownerID); err != nil {
		h.handleTodoItemError(c, err)
		return
	}
	c.Redirect(http.StatusFound, h.basePath)
}

func (h *TodoItemHandler) ToggleDone(c *gin.Context) {
	ownerID, ok := currentUserID(c)
	if !ok {
		return
	}
	id, ok := h.itemID(c)
	if !ok {
		return
	}

	if _, err := h.service.ToggleDone(c.Request.Context(), id, ownerID); err != nil {
		var conflict *services.ConflictError
		if errors.As(err, &conflict) {
			h.renderer.Render(c, http.StatusConflict, ViewEdit, FormView{
				Form:    formFromItem(conflict.Current),
				Message: conflict.Message,
			})
			return
		}
		h.handleTodoItemError(c, err)
		return
	}
	c.Redirect(http.StatusFound, h.basePath)
}

func (h *TodoItemHandler) renderInvalid(c *gin.Context, view string, form TodoItemForm, verr *models.ValidationError) {
	h.renderer.Render(c, http.StatusUnprocessableEntity, view, FormView{
		Form:   form,
		Errors: verr.Fields,
	})
}

// itemID parses the :id path segment. Anything that is not a positive
// integer cannot name an item, so it is answered like a missing one.
func (h *TodoItemHandler) itemID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, strconv.IntSize)
	if err != nil || id == 0 {
		h.notFound(c)
		return 0, false
	}
	return uint(id), true
}

func (h *TodoItemHandler) notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "todo item not found"})
}

func currentUserID(c *gin.Context) (string, bool) {
	value, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return "", false
	}
	userID, ok := value.(string)
	if !ok || userID == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid user ID format"})
		return "", false
	}
	return userID, true
}

func (h *TodoItemHandler) handleTodoItemError(c *gin.Context, err error) {
	if errors.Is(err, repositories.ErrNotFound) {
		h.notFound(c)
		return
	}

	h.logger.Error("todo item request failed",
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"err", err,
	)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "failed to process todo item request",
	})
}
