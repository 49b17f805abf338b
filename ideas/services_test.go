package ideas_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/kaizen-client/httpclient"
	"github.com/jrsteele09/kaizen-client/identity"
	"github.com/jrsteele09/kaizen-client/ideas"
	"github.com/jrsteele09/kaizen-client/internal/utils"
	"github.com/jrsteele09/kaizen-client/mockidentity"
	"github.com/stretchr/testify/require"
)

// staticCredentials attaches a fixed token and never renews.
type staticCredentials string

func (s staticCredentials) AccessToken() string { return string(s) }

func (s staticCredentials) Renew(context.Context) (string, error) {
	return "", errors.New("renew not supported")
}

type testFixture struct {
	server *httptest.Server
	author *ideas.Services // owns the seeded posts
	viewer *ideas.Services
	anon   *ideas.Services
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	mock, err := mockidentity.New()
	require.NoError(t, err)
	srv := httptest.NewServer(mock.Handler())
	t.Cleanup(srv.Close)

	return &testFixture{
		server: srv,
		author: services(t, srv.URL, login(t, srv.URL, "mentor", "mentor123")),
		viewer: services(t, srv.URL, login(t, srv.URL, mockidentity.DefaultUsername, mockidentity.DefaultPassword)),
		anon:   services(t, srv.URL, ""),
	}
}

func login(t *testing.T, baseURL, username, password string) string {
	t.Helper()
	c, err := identity.New(httpclient.New(baseURL))
	require.NoError(t, err)
	resp, err := c.Login(context.Background(), username, password)
	require.NoError(t, err)
	return resp.Access
}

func services(t *testing.T, baseURL, accessToken string) *ideas.Services {
	t.Helper()
	api := httpclient.New(baseURL, httpclient.WithInterceptor(httpclient.NewAuthInterceptor(staticCredentials(accessToken))))
	s, err := ideas.New(api)
	require.NoError(t, err)
	return s
}

func TestNew(t *testing.T) {
	_, err := ideas.New(nil)
	require.Error(t, err)
}

func TestPosts(t *testing.T) {
	ctx := context.Background()

	t.Run("anonymous list and get", func(t *testing.T) {
		f := setupTestFixture(t)
		posts, err := f.anon.Posts.List(ctx, nil)
		require.NoError(t, err)
		require.Len(t, posts, 2)

		post, err := f.anon.Posts.Get(ctx, posts[0].ID, nil)
		require.NoError(t, err)
		require.Equal(t, posts[0].Title, post.Title)
		require.Equal(t, "mentor", post.Author.Nickname)
	})

	t.Run("anonymous create is rejected", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.anon.Posts.Create(ctx, ideas.PostInput{Content: "x", Category: 1})
		require.True(t, httpclient.IsUnauthorized(err))
	})

	t.Run("create patch delete", func(t *testing.T) {
		f := setupTestFixture(t)
		categories, err := f.viewer.Categories.List(ctx, nil)
		require.NoError(t, err)
		require.NotEmpty(t, categories)

		created, err := f.viewer.Posts.Create(ctx, ideas.PostInput{Title: "Kanban", Content: "Add a kanban board", Category: categories[0].ID})
		require.NoError(t, err)
		require.Equal(t, ideas.StatusToVerify, created.Status)

		patched, err := f.viewer.Posts.Update(ctx, created.ID, ideas.PostPatch{Title: utils.Ptr("Kanban board")})
		require.NoError(t, err)
		require.Equal(t, "Kanban board", patched.Title)
		require.Equal(t, "Add a kanban board", patched.Content, "untouched fields kept")

		require.NoError(t, f.viewer.Posts.Remove(ctx, created.ID))
		_, err = f.viewer.Posts.Get(ctx, created.ID, nil)
		require.Equal(t, http.StatusNotFound, httpclient.StatusCode(err))
	})

	t.Run("validation message surfaces", func(t *testing.T) {
		f := setupTestFixture(t)
		_, err := f.viewer.Posts.Create(ctx, ideas.PostInput{Content: "", Category: 1})
		require.Equal(t, http.StatusBadRequest, httpclient.StatusCode(err))
		require.Contains(t, err.Error(), "content")
	})

	t.Run("only the author may patch", func(t *testing.T) {
		f := setupTestFixture(t)
		posts, err := f.viewer.Posts.List(ctx, nil)
		require.NoError(t, err)
		_, err = f.viewer.Posts.Update(ctx, posts[0].ID, ideas.PostPatch{Title: utils.Ptr("mine now")})
		require.Equal(t, http.StatusForbidden, httpclient.StatusCode(err))
	})
}

func TestCommentsAndNotifications(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	posts, err := f.author.Posts.List(ctx, nil)
	require.NoError(t, err)
	postID := posts[0].ID

	comment, err := f.viewer.Posts.AddComment(ctx, postID, "Great idea")
	require.NoError(t, err)
	require.Equal(t, postID, comment.Post)

	edited, err := f.viewer.Comments.Edit(ctx, comment.ID, "Great idea!")
	require.NoError(t, err)
	require.Equal(t, "Great idea!", edited.Text)

	comments, err := f.anon.Posts.FetchComments(ctx, postID, nil)
	require.NoError(t, err)
	require.Len(t, comments, 1)

	like, err := f.viewer.Posts.ToggleLike(ctx, postID)
	require.NoError(t, err)
	require.True(t, like.Liked())

	post, err := f.viewer.Posts.Get(ctx, postID, nil)
	require.NoError(t, err)
	require.Equal(t, 1, post.LikesCount)
	require.Equal(t, 1, post.CommentsCount)
	require.True(t, post.IsLikedByMe)

	count, err := f.author.Notifications.UnreadCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	notifications, err := f.author.Notifications.List(ctx, nil)
	require.NoError(t, err)
	require.Len(t, notifications, 2)
	require.Equal(t, ideas.NotificationLike, notifications[0].Type, "newest first")

	require.NoError(t, f.author.Notifications.MarkRead(ctx, notifications[0].ID))
	count, err = f.author.Notifications.UnreadCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	require.NoError(t, f.author.Notifications.MarkAllRead(ctx))
	count, err = f.author.Notifications.UnreadCount(ctx)
	require.NoError(t, err)
	require.Zero(t, count)

	unlike, err := f.viewer.Posts.ToggleLike(ctx, postID)
	require.NoError(t, err)
	require.False(t, unlike.Liked())

	require.NoError(t, f.viewer.Comments.Remove(ctx, comment.ID))
}

func TestSurvey(t *testing.T) {
	ctx := context.Background()
	f := setupTestFixture(t)

	posts, err := f.author.Posts.List(ctx, nil)
	require.NoError(t, err)
	postID := posts[0].ID

	in := ideas.SurveyInput{FrequencyValue: 2, FrequencyUnit: ideas.FrequencyWeek, AffectedPeople: 3, TimeLostMinutes: 15}
	survey, err := f.author.Posts.CreateSurvey(ctx, postID, in)
	require.NoError(t, err)
	require.InDelta(t, 6.0, survey.EstimatedTimeSavingsHours, 0.001)
	require.Equal(t, "360.00", survey.EstimatedFinancialSavings)

	_, err = f.author.Posts.CreateSurvey(ctx, postID, in)
	require.Equal(t, http.StatusBadRequest, httpclient.StatusCode(err), "one survey per post")

	in.FrequencyUnit = ideas.FrequencyDay
	survey, err = f.author.Posts.UpdateSurvey(ctx, postID, in)
	require.NoError(t, err)
	require.InDelta(t, 33.0, survey.EstimatedTimeSavingsHours, 0.001)
	require.Equal(t, "1980.00", survey.EstimatedFinancialSavings)
}

func TestCategoriesHideInactive(t *testing.T) {
	f := setupTestFixture(t)
	categories, err := f.viewer.Categories.List(context.Background(), nil)
	require.NoError(t, err)
	for _, c := range categories {
		require.True(t, c.IsActive, c.Name)
	}
}
