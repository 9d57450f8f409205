package handler_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-training-api/internal/handler"
	"github.com/noah-isme/gema-training-api/internal/router"
	"github.com/noah-isme/gema-training-api/internal/seed"
	"github.com/noah-isme/gema-training-api/internal/service"
)

type stubSeedService struct {
	lastToken string
	lastData  []byte
	err       error
}

func (s *stubSeedService) Load(_ context.Context, token string, data []byte) (seed.Summary, error) {
	s.lastToken = token
	s.lastData = data
	if s.err != nil {
		return seed.Summary{}, s.err
	}
	return seed.Summary{Users: 2, Courses: 1}, nil
}

const sampleFixture = `{"users":[{"name":"Admin","email":"admin@training.local","role":"admin","password":"secret"}]}`

func postFixture(t *testing.T, svc *stubSeedService, body []byte, contentType, token string) int {
	t.Helper()

	app := setupApp(t, router.Dependencies{SeedHandler: handler.NewSeedHandler(svc, testLogger())})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/seed", bytes.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Seed-Token", token)
	req.Header.Set("X-Test-User", "1")
	req.Header.Set("X-Test-Role", "admin")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	return resp.StatusCode
}

func TestSeedHandlerRawBody(t *testing.T) {
	svc := &stubSeedService{}
	status := postFixture(t, svc, []byte(sampleFixture), "application/json", "token-1")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "token-1", svc.lastToken)
	require.JSONEq(t, sampleFixture, string(svc.lastData))
}

func TestSeedHandlerMultipartUpload(t *testing.T) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("fixture", "seed.json")
	require.NoError(t, err)
	_, err = part.Write([]byte(sampleFixture))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	svc := &stubSeedService{}
	status := postFixture(t, svc, body.Bytes(), writer.FormDataContentType(), "token-1")
	require.Equal(t, http.StatusOK, status)
	require.JSONEq(t, sampleFixture, string(svc.lastData))
}

func TestSeedHandlerRejectsNonJSON(t *testing.T) {
	svc := &stubSeedService{}
	status := postFixture(t, svc, []byte("name,email\nadmin,admin@training.local\n"), "text/csv", "token-1")
	require.Equal(t, http.StatusUnsupportedMediaType, status)
	require.Nil(t, svc.lastData)

	status = postFixture(t, svc, nil, "application/json", "token-1")
	require.Equal(t, http.StatusBadRequest, status)
}

func TestSeedHandlerErrors(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{service.ErrSeedDisabled, http.StatusForbidden},
		{service.ErrSeedUnauthorized, http.StatusForbidden},
		{fmt.Errorf("%w: unknown subject %q", seed.ErrInvalidFixture, "X-1"), http.StatusBadRequest},
		{errors.New("connection reset"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		status := postFixture(t, &stubSeedService{err: tc.err}, []byte(sampleFixture), "application/json", "token-1")
		require.Equal(t, tc.status, status, tc.err.Error())
	}
}
