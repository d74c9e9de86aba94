package handlers

import "github.com/gin-gonic/gin"

// View names passed to a Renderer.
const (
	ViewIndex   = "index"
	ViewCreate  = "create"
	ViewDetails = "details"
	ViewEdit    = "edit"
	ViewDelete  = "delete"
)

// Renderer turns a view name and its model into a response. Page templates
// live outside this service; JSONRenderer is used when none is plugged in.
type Renderer interface {
	Render(c *gin.Context, status int, view string, model interface{})
}

type JSONRenderer struct{}

func (JSONRenderer) Render(c *gin.Context, status int, view string, model interface{}) {
	c.JSON(status, gin.H{
		"view":  view,
		"model": model,
	})
}
