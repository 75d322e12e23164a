package channel

import (
	"net/http"

	"videotube-backend/internal/auth"
	"videotube-backend/internal/httpapi"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Profile(r *http.Request) (httpapi.Response, error) {
	user, err := auth.CurrentUser(r)
	if err != nil {
		return httpapi.Response{}, err
	}

	profile, err := h.service.Profile(r.Context(), r.PathValue("username"), user.ID)
	if err != nil {
		return httpapi.Response{}, err
	}
	return httpapi.OK(profile, "User channel fetched successfully"), nil
}

func (h *Handler) WatchHistory(r *http.Request) (httpapi.Response, error) {
	user, err := auth.CurrentUser(r)
	if err != nil {
		return httpapi.Response{}, err
	}

	history, err := h.service.WatchHistory(r.Context(), user.ID)
	if err != nil {
		return httpapi.Response{}, err
	}
	return httpapi.OK(history, "Watch history fetched successfully"), nil
}

func (h *Handler) ToggleSubscription(r *http.Request) (httpapi.Response, error) {
	user, err := auth.CurrentUser(r)
	if err != nil {
		return httpapi.Response{}, err
	}

	subscribed, err := h.service.ToggleSubscription(r.Context(), user.ID, r.PathValue("channelId"))
	if err != nil {
		return httpapi.Response{}, err
	}

	message := "Unsubscribed successfully"
	if subscribed {
		message = "Subscribed successfully"
	}
	return httpapi.OK(map[string]bool{"subscribed": subscribed}, message), nil
}
