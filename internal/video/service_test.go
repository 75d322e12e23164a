package video

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"videotube-backend/internal/apperror"
	"videotube-backend/internal/auth"
	"videotube-backend/internal/httpapi"
	"videotube-backend/internal/media"
	"videotube-backend/internal/users"
)

type memoryRepository struct {
	mu      sync.Mutex
	videos  map[string]Video
	history map[string][]string
	seq     int
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{videos: map[string]Video{}, history: map[string][]string{}}
}

func (m *memoryRepository) ListPublished(_ context.Context, limit int) ([]Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Video, 0)
	for i := m.seq; i >= 1 && len(out) < limit; i-- {
		v := m.videos[fmt.Sprintf("v%d", i)]
		if v.IsPublished {
			out = append(out, v)
		}
	}
	return out, nil
}

func (m *memoryRepository) Create(_ context.Context, input NewVideo) (Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	now := time.Now().UTC()
	v := Video{
		ID: fmt.Sprintf("v%d", m.seq), VideoFile: input.VideoFile, Thumbnail: input.Thumbnail,
		Title: input.Title, Description: input.Description, Duration: input.Duration,
		IsPublished: true, Owner: input.Owner, CreatedAt: now, UpdatedAt: now,
	}
	m.videos[v.ID] = v
	return v, nil
}

func (m *memoryRepository) FindByID(_ context.Context, id string) (Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[id]
	if !ok {
		return Video{}, ErrNotFound
	}
	return v, nil
}

func (m *memoryRepository) RecordView(_ context.Context, videoID, viewerID string) (Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.videos[videoID]
	if !ok {
		return Video{}, ErrNotFound
	}
	v.Views++
	m.videos[videoID] = v

	next := []string{videoID}
	for _, id := range m.history[viewerID] {
		if id != videoID {
			next = append(next, id)
		}
	}
	if len(next) > MaxWatchHistory {
		next = next[:MaxWatchHistory]
	}
	m.history[viewerID] = next
	return v, nil
}

type stubUploader struct {
	err   error
	calls int
}

func (s *stubUploader) Upload(_ context.Context, file media.File) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "https://cdn.example.com/" + file.Name, nil
}

func validPublishInput() PublishInput {
	return PublishInput{
		Title:       "My first video",
		Description: "hello",
		Duration:    "12.5",
		VideoFile:   &media.File{Name: "clip.mp4", ContentType: "video/mp4", Data: []byte("mp4")},
		Thumbnail:   &media.File{Name: "thumb.png", ContentType: "image/png", Data: []byte("png")},
	}
}

func TestService_Publish(t *testing.T) {
	repo := newMemoryRepository()
	uploader := &stubUploader{}
	service := NewService(repo, uploader, zap.NewNop())

	v, err := service.Publish(context.Background(), "u1", validPublishInput())
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/clip.mp4", v.VideoFile)
	assert.Equal(t, "https://cdn.example.com/thumb.png", v.Thumbnail)
	assert.Equal(t, 12.5, v.Duration)
	assert.Equal(t, "u1", v.Owner)
	assert.True(t, v.IsPublished)
	assert.Equal(t, 2, uploader.calls)
}

func TestService_Publish_Validation(t *testing.T) {
	cases := map[string]func(*PublishInput){
		"missing title":     func(in *PublishInput) { in.Title = "   " },
		"long title":        func(in *PublishInput) { in.Title = string(bytes.Repeat([]byte("a"), 151)) },
		"long description":  func(in *PublishInput) { in.Description = string(bytes.Repeat([]byte("a"), 5001)) },
		"bad duration":      func(in *PublishInput) { in.Duration = "abc" },
		"zero duration":     func(in *PublishInput) { in.Duration = "0" },
		"NaN duration":      func(in *PublishInput) { in.Duration = "NaN" },
		"infinite duration": func(in *PublishInput) { in.Duration = "+Inf" },
		"missing video":     func(in *PublishInput) { in.VideoFile = nil },
		"missing thumbnail": func(in *PublishInput) { in.Thumbnail = nil },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			uploader := &stubUploader{}
			service := NewService(newMemoryRepository(), uploader, zap.NewNop())
			input := validPublishInput()
			mutate(&input)

			_, err := service.Publish(context.Background(), "u1", input)
			require.Error(t, err)
			assert.True(t, apperror.IsKind(err, apperror.KindValidation))
			assert.Zero(t, uploader.calls)
		})
	}
}

func TestService_Publish_UploadFailure(t *testing.T) {
	repo := newMemoryRepository()
	service := NewService(repo, &stubUploader{err: errors.New("cdn down")}, zap.NewNop())

	_, err := service.Publish(context.Background(), "u1", validPublishInput())
	require.Error(t, err)
	assert.Equal(t, http.StatusInternalServerError, apperror.StatusCode(err))

	list, err := service.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestService_Watch(t *testing.T) {
	repo := newMemoryRepository()
	service := NewService(repo, &stubUploader{}, zap.NewNop())

	first, err := service.Publish(context.Background(), "owner", validPublishInput())
	require.NoError(t, err)
	second, err := service.Publish(context.Background(), "owner", validPublishInput())
	require.NoError(t, err)

	_, err = service.Watch(context.Background(), first.ID, "viewer")
	require.NoError(t, err)
	_, err = service.Watch(context.Background(), second.ID, "viewer")
	require.NoError(t, err)
	v, err := service.Watch(context.Background(), first.ID, "viewer")
	require.NoError(t, err)

	assert.Equal(t, int64(2), v.Views)
	assert.Equal(t, []string{first.ID, second.ID}, repo.history["viewer"])

	_, err = service.Watch(context.Background(), "missing", "viewer")
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestService_Watch_UnpublishedVisibleToOwnerOnly(t *testing.T) {
	repo := newMemoryRepository()
	service := NewService(repo, &stubUploader{}, zap.NewNop())

	v, err := service.Publish(context.Background(), "owner", validPublishInput())
	require.NoError(t, err)
	hidden := repo.videos[v.ID]
	hidden.IsPublished = false
	repo.videos[v.ID] = hidden

	_, err = service.Watch(context.Background(), v.ID, "stranger")
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))

	_, err = service.Watch(context.Background(), v.ID, "owner")
	assert.NoError(t, err)

	list, err := service.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestWatchHistoryPipeline(t *testing.T) {
	id := primitive.NewObjectID()
	pipeline := watchHistoryPipeline(id)
	require.Len(t, pipeline, 1)

	raw, err := bson.MarshalExtJSON(bson.D(pipeline[0]), false, false)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "$concatArrays")
	assert.Contains(t, string(raw), "$slice")
	assert.Contains(t, string(raw), id.Hex())
}

func publishRequest(t *testing.T, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for key, value := range fields {
		require.NoError(t, writer.WriteField(key, value))
	}
	for field, file := range map[string][2]string{
		"videoFile": {"clip.mp4", "video/mp4"},
		"thumbnail": {"thumb.png", "image/png"},
	} {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, file[0]))
		header.Set("Content-Type", file[1])
		part, err := writer.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte("data"))
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/videos", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestHandler_PublishAndGet(t *testing.T) {
	repo := newMemoryRepository()
	handler := NewHandler(NewService(repo, &stubUploader{}, zap.NewNop()))
	dispatcher := httpapi.NewDispatcher(zap.NewNop())

	mux := http.NewServeMux()
	mux.Handle("GET /videos", dispatcher.Handle(handler.List))
	mux.Handle("POST /videos", dispatcher.Handle(handler.Publish, httpapi.WithBodyLimit(PublishBodyLimit)))
	mux.Handle("GET /videos/{videoId}", dispatcher.Handle(handler.Get))

	viewer := users.User{ID: "u1", Username: "alice"}
	withUser := func(r *http.Request) *http.Request {
		return r.WithContext(auth.WithUser(r.Context(), viewer))
	}

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, publishRequest(t, map[string]string{"title": "Hi"}))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, withUser(publishRequest(t, map[string]string{"title": "Hi", "duration": "3"})))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created struct {
		Data Video `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "u1", created.Data.Owner)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/videos/"+created.Data.ID, nil)))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/videos", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Data []Video `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed.Data, 1)
	assert.Equal(t, int64(1), listed.Data[0].Views)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, withUser(httptest.NewRequest(http.MethodGet, "/videos/nope", nil)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
