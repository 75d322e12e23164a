package auth

import (
	"net/http"

	"videotube-backend/internal/httpapi"
	"videotube-backend/internal/media"
	"videotube-backend/internal/users"
)

type Handler struct {
	service *Service
	cookies *Cookies
}

func NewHandler(service *Service, cookies *Cookies) *Handler {
	return &Handler{service: service, cookies: cookies}
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User         users.Profile `json:"user"`
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

func (h *Handler) Register(r *http.Request) (httpapi.Response, error) {
	if err := media.ParseMultipartForm(r); err != nil {
		return httpapi.Response{}, err
	}

	avatar, err := media.ReadFormFile(r, "avatar", media.ImageRule)
	if err != nil {
		return httpapi.Response{}, err
	}
	cover, err := media.ReadFormFile(r, "coverImage", media.ImageRule)
	if err != nil {
		return httpapi.Response{}, err
	}

	profile, err := h.service.Register(r.Context(), RegisterInput{
		Username:   r.FormValue("username"),
		Email:      r.FormValue("email"),
		FullName:   r.FormValue("fullName"),
		Password:   r.FormValue("password"),
		Avatar:     avatar,
		CoverImage: cover,
	})
	if err != nil {
		return httpapi.Response{}, err
	}

	return httpapi.Created(profile, "User registered successfully"), nil
}

func (h *Handler) Login(r *http.Request) (httpapi.Response, error) {
	var body loginRequest
	if err := httpapi.DecodeJSON(r, &body); err != nil {
		return httpapi.Response{}, err
	}

	result, err := h.service.Login(r.Context(), LoginInput(body))
	if err != nil {
		return httpapi.Response{}, err
	}

	resp := httpapi.OK(loginResponse{
		User:         result.User,
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
	}, "User logged in successfully")
	resp.Cookies = h.cookies.Issue(result.Tokens)
	return resp, nil
}

func (h *Handler) Logout(r *http.Request) (httpapi.Response, error) {
	user, err := CurrentUser(r)
	if err != nil {
		return httpapi.Response{}, err
	}

	if err := h.service.Logout(r.Context(), user.ID); err != nil {
		return httpapi.Response{}, err
	}

	resp := httpapi.OK(map[string]any{}, "User logged out")
	resp.Cookies = h.cookies.Clear()
	return resp, nil
}

func (h *Handler) Refresh(r *http.Request) (httpapi.Response, error) {
	token := cookieValue(r, RefreshCookieName)
	if token == "" {
		var body refreshRequest
		if err := httpapi.DecodeOptionalJSON(r, &body); err != nil {
			return httpapi.Response{}, err
		}
		token = body.RefreshToken
	}

	pair, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		return httpapi.Response{}, err
	}

	resp := httpapi.OK(pair, "Access token refreshed")
	resp.Cookies = h.cookies.Issue(pair)
	return resp, nil
}
