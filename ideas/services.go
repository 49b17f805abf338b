// Package ideas wraps the idea board REST endpoints. Every call goes through
// an httpclient.Client, so authentication is handled by its interceptor and
// call sites only see a result or a final *httpclient.RequestError.
package ideas

import (
	"context"
	"errors"
	"net/url"

	"github.com/jrsteele09/kaizen-client/httpclient"
)

const (
	PostsPath         = "/api/posts/"
	CommentsPath      = "/api/comments/"
	NotificationsPath = "/api/notifications/"
	CategoriesPath    = "/api/categories/"
)

// Services groups the idea board endpoints.
type Services struct {
	Posts         *PostsService
	Comments      *CommentsService
	Notifications *NotificationsService
	Categories    *CategoriesService
}

// New creates the services on top of an authenticated client.
func New(api *httpclient.Client) (*Services, error) {
	if api == nil {
		return nil, errors.New("[ideas.New] api client is required")
	}
	return &Services{
		Posts:         &PostsService{api: api, Resource: NewResource[Post](api, PostsPath)},
		Comments:      &CommentsService{Resource: NewResource[Comment](api, CommentsPath)},
		Notifications: &NotificationsService{api: api, Resource: NewResource[Notification](api, NotificationsPath)},
		Categories:    &CategoriesService{Resource: NewResource[Category](api, CategoriesPath)},
	}, nil
}

type PostsService struct {
	Resource[Post]
	api *httpclient.Client
}

// Update patches a post; posts are never replaced wholesale.
func (s *PostsService) Update(ctx context.Context, id int, patch PostPatch) (*Post, error) {
	return s.Patch(ctx, id, patch)
}

func (s *PostsService) FetchComments(ctx context.Context, postID int, params url.Values) ([]Comment, error) {
	return httpclient.Decode[[]Comment](s.api.Get(ctx, s.item(postID, "comments"), params))
}

func (s *PostsService) AddComment(ctx context.Context, postID int, text string) (*Comment, error) {
	return httpclient.Decode[*Comment](s.api.Post(ctx, s.item(postID, "comments"), CommentInput{Text: text}))
}

func (s *PostsService) ToggleLike(ctx context.Context, postID int) (LikeStatus, error) {
	return httpclient.Decode[LikeStatus](s.api.Post(ctx, s.item(postID, "like"), nil))
}

func (s *PostsService) CreateSurvey(ctx context.Context, postID int, survey SurveyInput) (*Survey, error) {
	return httpclient.Decode[*Survey](s.api.Post(ctx, s.item(postID, "survey"), survey))
}

func (s *PostsService) UpdateSurvey(ctx context.Context, postID int, survey SurveyInput) (*Survey, error) {
	return httpclient.Decode[*Survey](s.api.Put(ctx, s.item(postID, "survey"), survey))
}

type CommentsService struct {
	Resource[Comment]
}

// Edit replaces the text of a comment.
func (s *CommentsService) Edit(ctx context.Context, id int, text string) (*Comment, error) {
	return s.Update(ctx, id, CommentInput{Text: text})
}

type NotificationsService struct {
	Resource[Notification]
	api *httpclient.Client
}

func (s *NotificationsService) UnreadCount(ctx context.Context) (int, error) {
	count, err := httpclient.Decode[UnreadCount](s.api.Get(ctx, httpclient.JoinPath(s.basePath, "unread_count"), nil))
	return count.UnreadCount, err
}

func (s *NotificationsService) MarkRead(ctx context.Context, id int) error {
	_, err := s.api.Post(ctx, s.item(id, "mark_read"), nil)
	return err
}

func (s *NotificationsService) MarkAllRead(ctx context.Context) error {
	_, err := s.api.Post(ctx, httpclient.JoinPath(s.basePath, "mark_all_read"), nil)
	return err
}

type CategoriesService struct {
	Resource[Category]
}
