package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"memevault-backend/internal/middleware"
	"memevault-backend/internal/models"
	"memevault-backend/internal/repository/memory"
	"memevault-backend/internal/services"
	"memevault-backend/internal/storage"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	blobs   *storage.LocalStore
	hub     *services.GameHub
}

func newTestServer(t *testing.T, trustedProxies ...string) *testServer {
	t.Helper()
	proxies, err := middleware.ParseTrustedProxies(trustedProxies)
	require.NoError(t, err)
	db := memory.New()
	blobs, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	hub := services.NewGameHub()
	t.Cleanup(hub.Close)
	games := services.NewGameService(db.Games(), services.GameOptions{PhaseDuration: 10 * time.Minute, Notifier: hub})
	audit := services.NewAuditService(db.Audit())
	content := services.NewContentService(games, db.Images(), db.Memes(), blobs)
	votes := services.NewVoteService(games, db.Images(), db.Memes(), db.Votes())
	sweeper := services.NewSweeper(db.Games(), db.Images(), blobs, audit, services.SweeperOptions{GameRetentionDays: 30})
	identity := services.NewIdentityService(db.Users(), audit, "test-secret", time.Hour)
	dashboard := services.NewDashboardService(services.DashboardRepos{
		Games:  db.Games(),
		Images: db.Images(),
		Memes:  db.Memes(),
		Votes:  db.Votes(),
		Users:  db.Users(),
		Audit:  db.Audit(),
	})

	return &testServer{
		t: t,
		handler: NewRouter(RouterDeps{
			Games:          games,
			Content:        content,
			Votes:          votes,
			Dashboard:      dashboard,
			Images:         db.Images(),
			Sweeper:        sweeper,
			Identity:       identity,
			Audit:          audit,
			Hub:            hub,
			MaxUploadBytes: 1 << 20,
			UploadDir:      blobs.Dir(),
			TrustedProxies: proxies,
		}),
		blobs: blobs,
		hub:   hub,
	}
}

type request struct {
	method  string
	path    string
	body    any
	token   string
	ip      string // socket peer
	headers map[string]string
}

func (s *testServer) do(req request) *httptest.ResponseRecorder {
	s.t.Helper()
	var body io.Reader
	if req.body != nil {
		data, err := json.Marshal(req.body)
		require.NoError(s.t, err)
		body = bytes.NewReader(data)
	}
	r := httptest.NewRequest(req.method, req.path, body)
	if req.body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	if req.ip != "" {
		r.RemoteAddr = req.ip + ":40000"
	}
	for k, v := range req.headers {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	return w
}

func (s *testServer) upload(path, filename, title string) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		part, err := mw.CreateFormFile("image", filename)
		require.NoError(s.t, err)
		_, err = part.Write([]byte("\x89PNG fake image"))
		require.NoError(s.t, err)
	}
	require.NoError(s.t, mw.WriteField("title", title))
	require.NoError(s.t, mw.Close())

	r := httptest.NewRequest(http.MethodPost, path, &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.handler.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func (s *testServer) createGame() *models.Game {
	s.t.Helper()
	w := s.do(request{method: http.MethodPost, path: "/api/games", body: map[string]string{"name": "Friday", "creatorName": "Alice"}})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[*models.Game](s.t, w)
}

func (s *testServer) nextPhase(id string) *models.Game {
	s.t.Helper()
	w := s.do(request{method: http.MethodPost, path: "/api/games/" + id + "/next-phase"})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return decode[*models.Game](s.t, w)
}

func TestGameFlow(t *testing.T) {
	s := newTestServer(t)
	game := s.createGame()
	assert.Len(t, game.Code, 6)
	assert.Equal(t, models.StatusCollecting, game.Status)

	w := s.do(request{method: http.MethodPost, path: "/api/games/join", body: map[string]string{"code": strings.ToLower(game.Code), "playerName": "Bob"}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, []string{"Alice", "Bob"}, decode[*models.Game](t, w).Participants)

	w = s.upload("/api/games/"+game.ID+"/upload", "cat.png", "Cat")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	image := decode[*models.Image](t, w)
	assert.Equal(t, "Cat", image.Title)

	w = s.do(request{method: http.MethodGet, path: "/uploads/" + image.ImagePath})
	assert.Equal(t, http.StatusOK, w.Code)

	// memes are rejected while collecting
	meme := map[string]string{"imageId": image.ID, "topText": "WHEN THE", "bottomText": "TESTS PASS", "creator": "Bob"}
	w = s.do(request{method: http.MethodPost, path: "/api/games/" + game.ID + "/memes/create", body: meme})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_state", decode[ErrorResponse](t, w).Code)

	assert.Equal(t, models.StatusCreating, s.nextPhase(game.ID).Status)

	w = s.upload("/api/games/"+game.ID+"/upload", "late.png", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(request{method: http.MethodPost, path: "/api/games/" + game.ID + "/memes/create", body: meme})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[*models.Meme](t, w)
	assert.Equal(t, "Impact", created.FontType)

	w = s.do(request{method: http.MethodGet, path: "/api/games/" + game.ID + "/memes"})
	require.Equal(t, http.StatusOK, w.Code)
	memes := decode[[]*models.MemeWithImage](t, w)
	require.Len(t, memes, 1)
	require.NotNil(t, memes[0].Image)
	assert.Equal(t, image.ID, memes[0].Image.ID)

	assert.Equal(t, models.StatusVoting, s.nextPhase(game.ID).Status)

	votePath := "/api/games/" + game.ID + "/memes/" + created.ID + "/vote"
	w = s.do(request{method: http.MethodPost, path: votePath, body: map[string]string{"voter": "Alice"}, ip: "203.0.113.1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(request{method: http.MethodPost, path: votePath, body: map[string]string{"voter": "Alice"}, ip: "203.0.113.1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "duplicate", decode[ErrorResponse](t, w).Code)
	w = s.do(request{method: http.MethodPost, path: votePath, body: map[string]string{"voter": "Bob"}, ip: "203.0.113.2"})
	require.Equal(t, http.StatusCreated, w.Code)

	assert.Equal(t, models.StatusCompleted, s.nextPhase(game.ID).Status)
	w = s.do(request{method: http.MethodPost, path: "/api/games/" + game.ID + "/next-phase"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(request{method: http.MethodGet, path: "/api/games/" + game.ID + "/results"})
	require.Equal(t, http.StatusOK, w.Code)
	results := decode[[]*models.MemeResult](t, w)
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Votes)

	w = s.do(request{method: http.MethodPost, path: "/api/games/join", body: map[string]string{"code": game.Code, "playerName": "Carol"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGameErrors(t *testing.T) {
	s := newTestServer(t)

	w := s.do(request{method: http.MethodGet, path: "/api/games/missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, w).Code)

	w = s.do(request{method: http.MethodPost, path: "/api/games/join", body: map[string]string{"code": "ZZZZZZ", "playerName": "Bob"}})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(request{method: http.MethodPost, path: "/api/games", body: map[string]string{"name": "", "creatorName": "Alice"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "name", decode[ErrorResponse](t, w).Field)

	r := httptest.NewRequest(http.MethodPost, "/api/games", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	game := s.createGame()
	w = s.upload("/api/games/"+game.ID+"/upload", "", "no file")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.upload("/api/games/"+game.ID+"/upload", "notes.txt", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "image", decode[ErrorResponse](t, w).Field)
}

func TestLegacyRoutes(t *testing.T) {
	s := newTestServer(t)

	w := s.upload("/api/images/upload", "dog.jpg", "Dog")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	image := decode[*models.Image](t, w)
	assert.Nil(t, image.GameID)

	w = s.do(request{method: http.MethodPost, path: "/api/memes", body: map[string]string{"imageId": image.ID, "topText": "HI", "creator": "anon"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	meme := decode[*models.Meme](t, w)

	w = s.do(request{method: http.MethodPost, path: "/api/memes/" + meme.ID + "/vote", body: map[string]bool{"upvote": true}, ip: "198.51.100.1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(request{method: http.MethodPost, path: "/api/memes/" + meme.ID + "/vote", body: map[string]bool{"voteType": false}, ip: "198.51.100.2"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w = s.do(request{method: http.MethodPost, path: "/api/memes/" + meme.ID + "/vote", body: map[string]bool{"upvote": true}, ip: "198.51.100.2"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(request{method: http.MethodPost, path: "/api/memes/" + meme.ID + "/vote", body: map[string]string{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(request{method: http.MethodGet, path: "/api/memes/" + meme.ID + "/score"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.MemeScore{MemeID: meme.ID, Upvotes: 1, Downvotes: 1, Total: 2}, decode[models.MemeScore](t, w))

	w = s.do(request{method: http.MethodGet, path: "/api/images"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]*models.Image](t, w), 1)
}

func (s *testServer) adminToken() string {
	s.t.Helper()
	w := s.do(request{method: http.MethodPost, path: "/api/auth/setup-admin"})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	setup := decode[map[string]any](s.t, w)

	w = s.do(request{method: http.MethodPost, path: "/api/auth/login", body: map[string]any{"username": "admin", "password": setup["password"]}})
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return decode[services.LoginResult](s.t, w).Token
}

func TestAdminRequiresAuth(t *testing.T) {
	s := newTestServer(t)

	w := s.do(request{method: http.MethodGet, path: "/api/admin/games"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = s.do(request{method: http.MethodGet, path: "/api/admin/games", token: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := s.adminToken()
	w = s.do(request{method: http.MethodPost, path: "/api/admin/users", token: token, body: map[string]string{"username": "moderator", "password": "longenough", "role": "user"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(request{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{"username": "moderator", "password": "longenough"}})
	require.Equal(t, http.StatusOK, w.Code)
	userToken := decode[services.LoginResult](t, w).Token

	w = s.do(request{method: http.MethodGet, path: "/api/auth/validate", token: userToken})
	assert.Equal(t, http.StatusOK, w.Code)
	w = s.do(request{method: http.MethodGet, path: "/api/admin/games", token: userToken})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(request{method: http.MethodPost, path: "/api/auth/setup-admin"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(request{method: http.MethodGet, path: "/api/admin/audit-stats", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[[]services.ActionCount](t, w)
	assert.Contains(t, stats, services.ActionCount{Action: services.ActionInvalidToken, Count: 1})
	assert.Contains(t, stats, services.ActionCount{Action: services.ActionUnauthorizedAccess, Count: 1})

	w = s.do(request{method: http.MethodGet, path: "/api/admin/audit-stats?startDate=yesterday", token: token})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminModeration(t *testing.T) {
	s := newTestServer(t)
	token := s.adminToken()
	game := s.createGame()
	require.Equal(t, http.StatusCreated, s.upload("/api/games/"+game.ID+"/upload", "a.png", "").Code)
	require.Equal(t, http.StatusCreated, s.upload("/api/games/"+game.ID+"/upload", "b.gif", "").Code)

	w := s.do(request{method: http.MethodGet, path: "/api/admin/games", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode[[]*models.GameWithStats](t, w)
	require.Len(t, listed, 1)
	assert.Equal(t, 2, listed[0].Stats.ImageCount)

	w = s.do(request{method: http.MethodPatch, path: "/api/admin/games/" + game.ID + "/status", token: token, body: map[string]string{"status": "paused"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(request{method: http.MethodPatch, path: "/api/admin/games/" + game.ID + "/status", token: token, body: map[string]string{"status": "voting"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StatusVoting, decode[*models.Game](t, w).Status)

	w = s.do(request{method: http.MethodGet, path: "/api/admin/games/" + game.ID + "/details", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[services.GameDetails](t, w).Images, 2)

	w = s.do(request{method: http.MethodPost, path: "/api/admin/maintenance/cleanup", token: token, body: map[string]string{"type": "everything"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(request{method: http.MethodPost, path: "/api/admin/maintenance/cleanup", token: token, body: map[string]string{"type": "all"}})
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(request{method: http.MethodDelete, path: "/api/admin/games/" + game.ID, token: token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, decode[map[string]any](t, w)["deletedFiles"])

	w = s.do(request{method: http.MethodDelete, path: "/api/admin/games/" + game.ID, token: token})
	assert.Equal(t, http.StatusNotFound, w.Code)

	blobs, err := s.blobs.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, blobs)

	w = s.do(request{method: http.MethodGet, path: "/api/admin/storage-status", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(request{method: http.MethodGet, path: "/api/admin/dashboard", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode[map[string]any](t, w)["totalGames"])

	w = s.do(request{method: http.MethodGet, path: "/api/admin/audit-logs?limit=5", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[map[string]any](t, w)
	assert.EqualValues(t, 5, page["limit"])
	assert.Len(t, page["logs"], 5)
}

// votingMeme drives a fresh game to voting with one meme and returns the vote
// path for it
func (s *testServer) votingMeme() string {
	s.t.Helper()
	game := s.createGame()
	w := s.upload("/api/games/"+game.ID+"/upload", "a.png", "")
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	image := decode[*models.Image](s.t, w)
	s.nextPhase(game.ID)

	w = s.do(request{method: http.MethodPost, path: "/api/games/" + game.ID + "/memes/create", body: map[string]string{"imageId": image.ID, "topText": "WOW", "creator": "Bob"}})
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	meme := decode[*models.Meme](s.t, w)
	s.nextPhase(game.ID)
	return "/api/games/" + game.ID + "/memes/" + meme.ID + "/vote"
}

func TestVoteIgnoresForwardingHeadersFromClients(t *testing.T) {
	s := newTestServer(t)
	votePath := s.votingMeme()

	w := s.do(request{method: http.MethodPost, path: votePath, body: map[string]string{"voter": "Alice"}, ip: "203.0.113.50",
		headers: map[string]string{"X-Forwarded-For": "1.1.1.1"}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(request{method: http.MethodPost, path: votePath, body: map[string]string{"voter": "Alice"}, ip: "203.0.113.50",
		headers: map[string]string{"X-Forwarded-For": "2.2.2.2", "X-Real-IP": "3.3.3.3"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "duplicate", decode[ErrorResponse](t, w).Code)
}

func TestVoteHonorsTrustedProxyHeaders(t *testing.T) {
	s := newTestServer(t, "10.0.0.0/8")
	votePath := s.votingMeme()

	for _, client := range []string{"198.51.100.1", "198.51.100.2"} {
		w := s.do(request{method: http.MethodPost, path: votePath, body: map[string]string{}, ip: "10.0.0.2",
			headers: map[string]string{"X-Forwarded-For": client}})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}

	w := s.do(request{method: http.MethodPost, path: votePath, body: map[string]string{}, ip: "10.0.0.3",
		headers: map[string]string{"X-Forwarded-For": "198.51.100.1"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminCleanupDefaultsToAll(t *testing.T) {
	s := newTestServer(t)
	token := s.adminToken()

	w := s.do(request{method: http.MethodPost, path: "/api/admin/maintenance/cleanup", token: token, body: map[string]string{}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "all", decode[map[string]any](t, w)["type"])

	w = s.do(request{method: http.MethodGet, path: "/api/admin/audit-logs", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	type auditPage struct {
		Logs []*models.AuditLog `json:"logs"`
	}
	page := decode[auditPage](t, w)
	var found bool
	for _, entry := range page.Logs {
		if entry.Action == services.ActionInitiatedCleanup {
			found = true
			assert.Equal(t, "all", entry.Details["type"])
		}
	}
	assert.True(t, found, "cleanup is audited")
}

func TestAdminDashboard(t *testing.T) {
	s := newTestServer(t)
	token := s.adminToken()
	votePath := s.votingMeme()
	w := s.do(request{method: http.MethodPost, path: votePath, body: map[string]string{"voter": "Alice"}, ip: "203.0.113.9"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	s.createGame()

	w = s.do(request{method: http.MethodGet, path: "/api/admin/dashboard", token: token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	type dashboard struct {
		Overview       services.DashboardOverview `json:"overview"`
		RecentActivity services.RecentActivity    `json:"recentActivity"`
		TotalGames     int                        `json:"totalGames"`
	}
	dash := decode[dashboard](t, w)

	assert.Equal(t, services.DashboardOverview{
		TotalGames:  2,
		ActiveGames: 2,
		TotalUsers:  1,
		ActiveUsers: 1,
		TotalImages: 1,
		TotalMemes:  1,
		TotalVotes:  1,
	}, dash.Overview)
	assert.Equal(t, 2, dash.TotalGames)
	assert.Equal(t, 2, dash.RecentActivity.Games)
	assert.Equal(t, 1, dash.RecentActivity.Memes)
	assert.Equal(t, 1, dash.RecentActivity.Votes)
	assert.Equal(t, 1, dash.RecentActivity.Logins)
}

func TestLogout(t *testing.T) {
	s := newTestServer(t)

	w := s.do(request{method: http.MethodPost, path: "/api/auth/logout"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := s.adminToken()
	w = s.do(request{method: http.MethodPost, path: "/api/auth/logout", token: token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(request{method: http.MethodGet, path: "/api/admin/audit-stats", token: token})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decode[[]services.ActionCount](t, w), services.ActionCount{Action: services.ActionLogout, Count: 1})
}

func TestWebSocketReceivesGameEvents(t *testing.T) {
	s := newTestServer(t)
	game := s.createGame()

	srv := httptest.NewServer(s.handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/games/" + game.ID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var snapshot services.WSMessage
	require.NoError(t, conn.ReadJSON(&snapshot))
	assert.Equal(t, services.EventGameUpdated, snapshot.Type)

	require.Eventually(t, func() bool { return s.hub.Subscribers(game.ID) == 1 }, 2*time.Second, 10*time.Millisecond)
	s.nextPhase(game.ID)

	var event struct {
		Type string       `json:"type"`
		Data *models.Game `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, services.EventGameUpdated, event.Type)
	assert.Equal(t, models.StatusCreating, event.Data.Status)

	_, _, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws/games/missing", nil)
	assert.Error(t, err)
}
