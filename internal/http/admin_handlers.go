package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) listUsers(c *gin.Context) {
	users, err := h.users.ListUsers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := make([]UserResponse, len(users))
	for i := range users {
		resp[i] = userToResponse(users[i])
	}
	c.JSON(http.StatusOK, gin.H{"users": resp})
}

func (h *Handler) deleteNote(c *gin.Context) {
	id := c.Param("id")
	if err := h.notes.Delete(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	h.logger.WithField("note_id", id).WithField("admin_id", currentUser(c).ID).Info("note removed by admin")
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (h *Handler) listObjects(c *gin.Context) {
	objects, err := h.notes.ListStoredObjects(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := make([]StorageObjectResponse, len(objects))
	for i := range objects {
		resp[i] = objectToResponse(objects[i])
	}
	c.JSON(http.StatusOK, gin.H{"objects": resp})
}
