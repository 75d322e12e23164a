package video

import (
	"net/http"

	"videotube-backend/internal/auth"
	"videotube-backend/internal/httpapi"
	"videotube-backend/internal/media"
)

// PublishBodyLimit covers the largest video plus a thumbnail and form fields.
const PublishBodyLimit = media.MaxVideoBytes + media.MaxImageBytes + 1<<20

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) List(r *http.Request) (httpapi.Response, error) {
	videos, err := h.service.List(r.Context())
	if err != nil {
		return httpapi.Response{}, err
	}
	return httpapi.OK(videos, "Videos fetched successfully"), nil
}

func (h *Handler) Publish(r *http.Request) (httpapi.Response, error) {
	user, err := auth.CurrentUser(r)
	if err != nil {
		return httpapi.Response{}, err
	}

	if err := media.ParseMultipartForm(r); err != nil {
		return httpapi.Response{}, err
	}
	videoFile, err := media.ReadFormFile(r, "videoFile", media.VideoRule)
	if err != nil {
		return httpapi.Response{}, err
	}
	thumbnail, err := media.ReadFormFile(r, "thumbnail", media.ImageRule)
	if err != nil {
		return httpapi.Response{}, err
	}

	v, err := h.service.Publish(r.Context(), user.ID, PublishInput{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Duration:    r.FormValue("duration"),
		VideoFile:   videoFile,
		Thumbnail:   thumbnail,
	})
	if err != nil {
		return httpapi.Response{}, err
	}
	return httpapi.Created(v, "Video published successfully"), nil
}

func (h *Handler) Get(r *http.Request) (httpapi.Response, error) {
	user, err := auth.CurrentUser(r)
	if err != nil {
		return httpapi.Response{}, err
	}

	v, err := h.service.Watch(r.Context(), r.PathValue("videoId"), user.ID)
	if err != nil {
		return httpapi.Response{}, err
	}
	return httpapi.OK(v, "Video fetched successfully"), nil
}
