package account

import (
	"net/http"

	"videotube-backend/internal/auth"
	"videotube-backend/internal/httpapi"
	"videotube-backend/internal/media"
	"videotube-backend/internal/users"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateDetailsRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}

func (h *Handler) CurrentUser(r *http.Request) (httpapi.Response, error) {
	user, err := auth.CurrentUser(r)
	if err != nil {
		return httpapi.Response{}, err
	}
	return httpapi.OK(user.Sanitize(), "Current user fetched successfully"), nil
}

func (h *Handler) ChangePassword(r *http.Request) (httpapi.Response, error) {
	user, err := auth.CurrentUser(r)
	if err != nil {
		return httpapi.Response{}, err
	}

	var body changePasswordRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		return httpapi.Response{}, err
	}

	if err := h.service.ChangePassword(r.Context(), user.ID, body.OldPassword, body.NewPassword); err != nil {
		return httpapi.Response{}, err
	}
	return httpapi.OK(map[string]any{}, "Password changed successfully"), nil
}

func (h *Handler) UpdateDetails(r *http.Request) (httpapi.Response, error) {
	user, err := auth.CurrentUser(r)
	if err != nil {
		return httpapi.Response{}, err
	}

	var body updateDetailsRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		return httpapi.Response{}, err
	}

	profile, err := h.service.UpdateDetails(r.Context(), user.ID, body.FullName, body.Email)
	if err != nil {
		return httpapi.Response{}, err
	}
	return httpapi.OK(profile, "Account details updated successfully"), nil
}

func (h *Handler) UpdateAvatar(r *http.Request) (httpapi.Response, error) {
	return h.updateImage(r, users.ImageAvatar, "avatar", "Avatar updated successfully")
}

func (h *Handler) UpdateCoverImage(r *http.Request) (httpapi.Response, error) {
	return h.updateImage(r, users.ImageCover, "coverImage", "Cover image updated successfully")
}

func (h *Handler) updateImage(r *http.Request, field users.ImageField, formField, message string) (httpapi.Response, error) {
	user, err := auth.CurrentUser(r)
	if err != nil {
		return httpapi.Response{}, err
	}

	if err := media.ParseMultipartForm(r); err != nil {
		return httpapi.Response{}, err
	}
	file, err := media.ReadFormFile(r, formField, media.ImageRule)
	if err != nil {
		return httpapi.Response{}, err
	}

	profile, err := h.service.UpdateImage(r.Context(), user.ID, field, file)
	if err != nil {
		return httpapi.Response{}, err
	}
	return httpapi.OK(profile, message), nil
}
