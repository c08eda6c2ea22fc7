package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UkralStul/echonymous/internal/auth"
	"github.com/UkralStul/echonymous/internal/cursor"
	"github.com/UkralStul/echonymous/internal/domain"
	"github.com/UkralStul/echonymous/internal/events"
	"github.com/UkralStul/echonymous/internal/service"
	"github.com/UkralStul/echonymous/internal/storage/inmemory"
)

type testAPI struct {
	handler http.Handler
	store   *inmemory.Store
	tokens  *auth.Manager
}

type response struct {
	Status       int             `json:"status"`
	Success      bool            `json:"success"`
	Details      string          `json:"details"`
	Token        string          `json:"token"`
	ResponseData json.RawMessage `json:"responseData"`
}

type feedPage[T any] struct {
	Content    []T     `json:"content"`
	NextCursor *string `json:"nextCursor"`
	HasNext    bool    `json:"hasNext"`
}

func newTestAPI() *testAPI {
	store := inmemory.New()
	hub := events.NewHub()
	tokens := auth.NewManager("test-secret", time.Hour)
	svc := service.New(store, tokens, hub)
	return &testAPI{
		handler: NewHandler(svc, tokens, store, hub).Routes(),
		store:   store,
		tokens:  tokens,
	}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) (int, response) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var resp response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	assert.Equal(t, rec.Code, resp.Status)
	return rec.Code, resp
}

// signup registers a user and returns its id and token.
func (a *testAPI) signup(t *testing.T, name string) (string, string) {
	t.Helper()
	code, resp := a.do(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"email":    name + "@example.com",
		"username": name,
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, code, resp.Details)

	var user struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(resp.ResponseData, &user))
	return user.ID, resp.Token
}

func (a *testAPI) createPost(t *testing.T, authorID string, at time.Time) *domain.Post {
	t.Helper()
	post, err := a.store.CreatePost(context.Background(), &domain.Post{
		Kind:      domain.PostKindText,
		Category:  "General",
		AuthorID:  authorID,
		Content:   "hello",
		CreatedAt: at,
	})
	require.NoError(t, err)
	return post
}

func field[T any](t *testing.T, resp response, key string) T {
	t.Helper()
	var data map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(resp.ResponseData, &data))
	var v T
	require.NoError(t, json.Unmarshal(data[key], &v), key)
	return v
}

func TestHealth(t *testing.T) {
	api := newTestAPI()
	code, resp := api.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
}

func TestAuth_SignupAndLogin(t *testing.T) {
	api := newTestAPI()
	userID, token := api.signup(t, "alice")
	assert.NotEmpty(t, token)

	code, resp := api.do(t, http.MethodPost, "/auth/login", "", map[string]string{"username": "alice", "password": "password123"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Login successful.", resp.Details)
	assert.Equal(t, userID, field[string](t, resp, "id"))

	claims, err := api.tokens.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID())
}

func TestAuth_Errors(t *testing.T) {
	api := newTestAPI()
	api.signup(t, "alice")

	tests := []struct {
		name    string
		path    string
		body    any
		code    int
		details string
	}{
		{"duplicate username", "/auth/signup", map[string]string{"email": "x@example.com", "username": "alice", "password": "password123"}, http.StatusBadRequest, "Username already exists."},
		{"malformed body", "/auth/signup", "{not json", http.StatusBadRequest, "Validation failed. Check input fields."},
		{"wrong password", "/auth/login", map[string]string{"username": "alice", "password": "nope-nope"}, http.StatusUnauthorized, "Invalid username or password."},
		{"unknown user", "/auth/login", map[string]string{"username": "bob", "password": "password123"}, http.StatusNotFound, "User not found."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, resp := api.do(t, http.MethodPost, tt.path, "", tt.body)
			assert.Equal(t, tt.code, code)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.details, resp.Details)
		})
	}
}

func TestAuth_RequiresToken(t *testing.T) {
	api := newTestAPI()
	userID, _ := api.signup(t, "alice")
	expired, err := api.tokens.GenerateTokenWithExpiry(userID, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	for _, token := range []string{"", "garbage", expired} {
		code, resp := api.do(t, http.MethodGet, "/posts/text-feed", token, nil)
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, "Invalid or missing JWT token.", resp.Details)
	}
}

func TestPosts_UploadAndFetch(t *testing.T) {
	api := newTestAPI()
	_, token := api.signup(t, "alice")

	code, resp := api.do(t, http.MethodPost, "/posts/upload-text", token, map[string]string{"category": "Tech", "content": "Go is fun"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Upload successful.", resp.Details)
	postID := field[string](t, resp, "postId")

	code, _ = api.do(t, http.MethodPost, "/posts/upload-audio", token, map[string]string{"category": "Music", "filePath": "/audio/a.mp3"})
	require.Equal(t, http.StatusOK, code)

	code, resp = api.do(t, http.MethodGet, "/posts/text-feed/"+postID, token, nil)
	require.Equal(t, http.StatusOK, code)
	post := field[service.PostView](t, resp, "textPost")
	assert.Equal(t, "Go is fun", post.Content)
	assert.True(t, post.IsCurrentUserPost)

	code, resp = api.do(t, http.MethodGet, "/posts/text-feed?category=all", token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, field[feedPage[service.PostView]](t, resp, "feed").Content, 1)

	code, _ = api.do(t, http.MethodPost, "/posts/upload-text", token, map[string]string{"category": "Tech"})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestPosts_FeedPagination(t *testing.T) {
	api := newTestAPI()
	userID, token := api.signup(t, "alice")
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 12; i++ {
		api.createPost(t, userID, base.Add(time.Duration(i)*time.Minute))
	}

	code, resp := api.do(t, http.MethodGet, "/posts/text-feed?limit=10", token, nil)
	require.Equal(t, http.StatusOK, code)
	first := field[feedPage[service.PostView]](t, resp, "feed")
	require.Len(t, first.Content, 10)
	assert.True(t, first.HasNext)
	require.NotNil(t, first.NextCursor)
	assert.Equal(t, cursor.Encode(base.Add(2*time.Minute)), *first.NextCursor)

	code, resp = api.do(t, http.MethodGet, "/posts/text-feed?limit=10&cursor="+*first.NextCursor, token, nil)
	require.Equal(t, http.StatusOK, code)
	second := field[feedPage[service.PostView]](t, resp, "feed")
	assert.Len(t, second.Content, 2)
	assert.False(t, second.HasNext)
	assert.Nil(t, second.NextCursor)

	// Missing and non-positive limits use the default page size.
	for _, q := range []string{"", "?limit=0", "?limit=-3", "?limit=abc"} {
		code, resp = api.do(t, http.MethodGet, "/posts/text-feed"+q, token, nil)
		require.Equal(t, http.StatusOK, code)
		assert.Len(t, field[feedPage[service.PostView]](t, resp, "feed").Content, 10, q)
	}

	code, resp = api.do(t, http.MethodGet, "/posts/text-feed?cursor=yesterday", token, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Invalid cursor format. Expected ISO_LOCAL_DATE_TIME.", resp.Details)
}

func TestPosts_UserFeed(t *testing.T) {
	api := newTestAPI()
	aliceID, aliceToken := api.signup(t, "alice")
	bobID, _ := api.signup(t, "bob")
	api.createPost(t, aliceID, time.Time{})
	api.createPost(t, bobID, time.Time{})
	api.createPost(t, bobID, time.Time{})

	_, resp := api.do(t, http.MethodGet, "/posts/user-feed", aliceToken, nil)
	assert.Len(t, field[feedPage[service.PostView]](t, resp, "myTextPosts").Content, 1)

	_, resp = api.do(t, http.MethodGet, "/posts/user-feed?userId="+bobID, aliceToken, nil)
	mine := field[feedPage[service.PostView]](t, resp, "myTextPosts")
	require.Len(t, mine.Content, 2)
	assert.False(t, mine.Content[0].IsCurrentUserPost)
}

func TestPosts_LikeAndEcho(t *testing.T) {
	api := newTestAPI()
	aliceID, aliceToken := api.signup(t, "alice")
	_, bobToken := api.signup(t, "bob")
	post := api.createPost(t, aliceID, time.Time{})

	code, resp := api.do(t, http.MethodPost, "/posts/"+post.ID+"/like", aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Liked successfully", resp.Details)
	assert.Equal(t, 1, field[int](t, resp, "likesCount"))

	_, resp = api.do(t, http.MethodPost, "/posts/"+post.ID+"/like", aliceToken, nil)
	assert.Equal(t, "Disliked successfully", resp.Details)
	assert.Equal(t, 0, field[int](t, resp, "likesCount"))

	code, _ = api.do(t, http.MethodPost, "/posts/missing/like", aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, code)

	_, resp = api.do(t, http.MethodPost, "/posts/"+post.ID+"/echo", bobToken, nil)
	assert.Equal(t, "Echoed successfully", resp.Details)
	assert.Equal(t, 1, field[int](t, resp, "echoesCount"))

	_, resp = api.do(t, http.MethodGet, "/posts/echoed", bobToken, nil)
	echoed := field[feedPage[service.PostView]](t, resp, "echoedPosts")
	require.Len(t, echoed.Content, 1)
	assert.Equal(t, post.ID, echoed.Content[0].PostID)
	assert.Equal(t, 1, echoed.Content[0].Engagement.EchoCount)

	_, resp = api.do(t, http.MethodPost, "/posts/"+post.ID+"/echo", bobToken, nil)
	assert.Equal(t, "Unechoed successfully", resp.Details)
}

func TestPosts_EditAndDelete(t *testing.T) {
	api := newTestAPI()
	aliceID, aliceToken := api.signup(t, "alice")
	_, bobToken := api.signup(t, "bob")
	post := api.createPost(t, aliceID, time.Time{})
	edit := map[string]string{"category": "News", "content": "edited"}

	code, resp := api.do(t, http.MethodPut, "/posts/edit-text-feed/"+post.ID, bobToken, edit)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "User not authorized to update this post.", resp.Details)

	code, resp = api.do(t, http.MethodPut, "/posts/edit-text-feed/"+post.ID, aliceToken, edit)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "edited", field[service.PostView](t, resp, "updatedPost").Content)

	code, _ = api.do(t, http.MethodDelete, "/posts/delete-text-feed/"+post.ID, bobToken, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, resp = api.do(t, http.MethodDelete, "/posts/delete-text-feed/"+post.ID, aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Post deleted successfully.", resp.Details)

	code, _ = api.do(t, http.MethodGet, "/posts/text-feed/"+post.ID, aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestComments_Lifecycle(t *testing.T) {
	api := newTestAPI()
	aliceID, aliceToken := api.signup(t, "alice")
	_, bobToken := api.signup(t, "bob")
	post := api.createPost(t, aliceID, time.Time{})

	code, resp := api.do(t, http.MethodPost, "/comments/post/"+post.ID, bobToken, map[string]string{"comment": "first!"})
	require.Equal(t, http.StatusOK, code)
	root := field[service.CommentView](t, resp, "comment")
	assert.Equal(t, "first!", root.Comment)

	for i := 0; i < 2; i++ {
		code, _ = api.do(t, http.MethodPost, "/comments/post/"+post.ID+"?parentCommentId="+root.CommentID, aliceToken,
			map[string]string{"comment": fmt.Sprintf("reply %d", i)})
		require.Equal(t, http.StatusOK, code)
	}

	code, resp = api.do(t, http.MethodPost, "/comments/"+root.CommentID+"/like", aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Liked comment successfully", resp.Details)
	assert.Equal(t, 1, field[service.CommentView](t, resp, "comment").CommentLikesCount)

	_, resp = api.do(t, http.MethodGet, "/comments/post/"+post.ID, aliceToken, nil)
	top := field[feedPage[service.CommentView]](t, resp, "comments")
	require.Len(t, top.Content, 1)
	assert.Equal(t, 2, top.Content[0].ReplyCount)
	assert.True(t, top.Content[0].IsCommentLiked)

	_, resp = api.do(t, http.MethodGet, "/comments/"+root.CommentID+"/replies?limit=1", bobToken, nil)
	replies := field[feedPage[service.CommentView]](t, resp, "replies")
	assert.Len(t, replies.Content, 1)
	assert.True(t, replies.HasNext)

	code, _ = api.do(t, http.MethodPut, "/comments/"+root.CommentID, aliceToken, map[string]string{"comment": "mine now"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, resp = api.do(t, http.MethodPut, "/comments/"+root.CommentID, bobToken, map[string]string{"comment": strings.Repeat("x", 2001)})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Comment content is too long.", resp.Details)

	code, resp = api.do(t, http.MethodPut, "/comments/"+root.CommentID, bobToken, map[string]string{"comment": "edited"})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "edited", field[service.CommentView](t, resp, "comment").Comment)

	// The post's author removes bob's comment and its replies.
	code, _ = api.do(t, http.MethodDelete, "/comments/"+root.CommentID, aliceToken, nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = api.do(t, http.MethodGet, "/comments/"+root.CommentID+"/replies", aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, code)

	_, resp = api.do(t, http.MethodGet, "/comments/post/"+post.ID, aliceToken, nil)
	assert.Empty(t, field[feedPage[service.CommentView]](t, resp, "comments").Content)
}

func TestComments_NotFound(t *testing.T) {
	api := newTestAPI()
	_, token := api.signup(t, "alice")

	code, resp := api.do(t, http.MethodPost, "/comments/post/missing", token, map[string]string{"comment": "hi"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "Post not found.", resp.Details)

	code, _ = api.do(t, http.MethodGet, "/comments/post/missing", token, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestLiveComments(t *testing.T) {
	api := newTestAPI()
	aliceID, aliceToken := api.signup(t, "alice")
	post := api.createPost(t, aliceID, time.Time{})

	srv := httptest.NewServer(api.handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/comments/post/" + post.ID + "/live"
	header := http.Header{"Authorization": []string{"Bearer " + aliceToken}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	code, _ := api.do(t, http.MethodPost, "/comments/post/"+post.ID, aliceToken, map[string]string{"comment": "live!"})
	require.Equal(t, http.StatusOK, code)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg liveMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, events.CommentCreated, msg.Type)
	assert.Equal(t, "live!", msg.Comment.Comment)
	assert.True(t, msg.Comment.IsCurrentUserComment)
}

func TestLiveComments_Rejects(t *testing.T) {
	api := newTestAPI()
	_, token := api.signup(t, "alice")

	srv := httptest.NewServer(api.handler)
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	_, resp, err := websocket.DefaultDialer.Dial(base+"/comments/post/missing/live?token="+token, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, resp, err = websocket.DefaultDialer.Dial(base+"/comments/post/missing/live", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
