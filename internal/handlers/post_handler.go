package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"obogportal/internal/models"
	"obogportal/internal/services"
)

type PostHandler struct {
	posts   services.PostService
	storage services.StorageService
}

func NewPostHandler(posts services.PostService, storage services.StorageService) *PostHandler {
	return &PostHandler{posts: posts, storage: storage}
}

func postID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "Invalid post id")
		return 0, false
	}
	return id, true
}

// @Summary  List posts
// @Tags     Posts
// @Produce  json
// @Param    limit   query     int  false  "Page size (default 20, max 100)"
// @Param    offset  query     int  false  "Offset"
// @Success  200     {object}  Envelope{data=[]models.Post}
// @Failure  400     {object}  Envelope
// @Failure  401     {object}  Envelope
// @Router   /api/posts [get]
func (h *PostHandler) List(c *gin.Context) {
	limit, okLimit := queryInt(c, "limit", 0)
	offset, okOffset := queryInt(c, "offset", 0)
	if !okLimit || !okOffset {
		fail(c, http.StatusBadRequest, "limit and offset must be non-negative integers")
		return
	}
	posts, err := h.posts.List(c.Request.Context(), limit, offset)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "", posts)
}

// @Summary  Get a post
// @Tags     Posts
// @Produce  json
// @Param    id   path      string  true  "Post id"
// @Success  200  {object}  Envelope{data=models.Post}
// @Failure  400  {object}  Envelope
// @Failure  404  {object}  Envelope
// @Router   /api/posts/{id} [get]
func (h *PostHandler) Get(c *gin.Context) {
	id, valid := postID(c)
	if !valid {
		return
	}
	p, err := h.posts.Get(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "", p)
}

// @Summary  Create a post
// @Tags     Posts
// @Accept   json
// @Produce  json
// @Param    body  body      models.CreatePostRequest  true  "Post"
// @Success  201   {object}  Envelope{data=models.Post}
// @Failure  400   {object}  Envelope
// @Failure  401   {object}  Envelope
// @Failure  403   {object}  Envelope
// @Router   /api/posts [post]
func (h *PostHandler) Create(c *gin.Context) {
	var req models.CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "title and body are required")
		return
	}
	user, _ := currentUser(c)
	p, err := h.posts.Create(c.Request.Context(), user, req)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, "Post created", p)
}

// @Summary  Delete a post
// @Tags     Posts
// @Produce  json
// @Param    id   path      string  true  "Post id"
// @Success  200  {object}  Envelope
// @Failure  403  {object}  Envelope
// @Failure  404  {object}  Envelope
// @Router   /api/posts/{id} [delete]
func (h *PostHandler) Delete(c *gin.Context) {
	id, valid := postID(c)
	if !valid {
		return
	}
	user, _ := currentUser(c)
	if err := h.posts.Delete(c.Request.Context(), user, id); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "Post deleted", nil)
}

// @Summary      Presigned image upload
// @Description  Returns a presigned PUT URL for uploading a post image straight to object storage.
// @Tags         Posts
// @Accept       json
// @Produce      json
// @Param        body  body      models.UploadURLRequest  true  "File name and content type"
// @Success      200   {object}  Envelope{data=services.UploadURL}
// @Failure      400   {object}  Envelope
// @Failure      503   {object}  Envelope
// @Router       /api/posts/upload-url [post]
func (h *PostHandler) UploadURL(c *gin.Context) {
	var req models.UploadURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "filename and content_type are required")
		return
	}
	user, _ := currentUser(c)
	up, err := h.storage.PresignUpload(c.Request.Context(), user.ID, req.Filename, req.ContentType)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, "", up)
}
