package mockidentity

import (
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jrsteele09/kaizen-client/ideas"
)

// boardError carries the status and detail a handler should answer with.
type boardError struct {
	status int
	detail string
}

func (e *boardError) Error() string {
	return e.detail
}

func badRequest(detail string) error {
	return &boardError{status: http.StatusBadRequest, detail: detail}
}

var (
	errNotFound  = &boardError{status: http.StatusNotFound, detail: "No KaizenPost matches the given query."}
	errForbidden = &boardError{status: http.StatusForbidden, detail: "You do not have permission to perform this action."}
)

type postRecord struct {
	post     ideas.Post
	authorID int
}

type commentRecord struct {
	comment  ideas.Comment
	authorID int
}

type notificationRecord struct {
	notification ideas.Notification
	recipientID  int
}

// board is the in-memory idea board.
type board struct {
	mu            sync.Mutex
	nowTime       func() time.Time
	nextID        int
	categories    []ideas.Category
	posts         map[int]*postRecord
	comments      map[int]*commentRecord
	likes         map[int]map[int]bool // post id -> user ids
	surveys       map[int]ideas.Survey
	notifications []*notificationRecord
}

func newBoard(nowTime func() time.Time) *board {
	return &board{
		nowTime:  nowTime,
		nextID:   1,
		posts:    make(map[int]*postRecord),
		comments: make(map[int]*commentRecord),
		likes:    make(map[int]map[int]bool),
		surveys:  make(map[int]ideas.Survey),
	}
}

func authorOf(user *User) ideas.Author {
	return ideas.Author{ID: user.ID, Nickname: user.Nickname}
}

func (b *board) id() int {
	id := b.nextID
	b.nextID++
	return id
}

func (b *board) seed(author *User) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, name := range []string{"Safety", "Quality", "Productivity", "Ergonomics"} {
		b.categories = append(b.categories, ideas.Category{ID: b.id(), Name: name, IsActive: true})
	}
	b.categories = append(b.categories, ideas.Category{ID: b.id(), Name: "Archive", IsActive: false})

	seeded := []struct{ title, content string }{
		{"Shadow board labels", "Label the tool shadow board so missing tools are obvious at shift change."},
		{"Move the label printer", "Move the label printer next to the packing station to cut walking time."},
	}
	for i, p := range seeded {
		id := b.id()
		b.posts[id] = &postRecord{
			authorID: author.ID,
			post: ideas.Post{
				ID:        id,
				Title:     p.title,
				Author:    authorOf(author),
				Content:   p.content,
				Category:  b.categories[i].ID,
				Status:    ideas.StatusSubmitted,
				CreatedAt: b.nowTime(),
			},
		}
	}
}

// view returns a copy of the post as seen by viewer, counts filled in.
func (b *board) view(rec *postRecord, viewer *User) ideas.Post {
	p := rec.post
	p.LikesCount = len(b.likes[p.ID])
	p.CommentsCount = 0
	for _, c := range b.comments {
		if c.comment.Post == p.ID {
			p.CommentsCount++
		}
	}
	p.IsLikedByMe = viewer != nil && b.likes[p.ID][viewer.ID]
	return p
}

func (b *board) notify(recipientID int, kind ideas.NotificationType, actor *User, postID int, commentID *int) {
	if recipientID == actor.ID {
		return
	}
	b.notifications = append(b.notifications, &notificationRecord{
		recipientID: recipientID,
		notification: ideas.Notification{
			ID:        b.id(),
			Type:      kind,
			Actor:     authorOf(actor),
			Post:      postID,
			Comment:   commentID,
			CreatedAt: b.nowTime(),
		},
	})
}

func (b *board) listPosts(viewer *User) []ideas.Post {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]ideas.Post, 0, len(b.posts))
	for _, rec := range b.posts {
		out = append(out, b.view(rec, viewer))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (b *board) getPost(id int, viewer *User) (ideas.Post, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, ok := b.posts[id]
	if !ok {
		return ideas.Post{}, errNotFound
	}
	return b.view(rec, viewer), nil
}

func (b *board) activeCategory(id int) bool {
	for _, c := range b.categories {
		if c.ID == id {
			return c.IsActive
		}
	}
	return false
}

func (b *board) createPost(author *User, in ideas.PostInput) (ideas.Post, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if strings.TrimSpace(in.Content) == "" {
		return ideas.Post{}, badRequest("content: This field may not be blank.")
	}
	if !b.activeCategory(in.Category) {
		return ideas.Post{}, badRequest("category: Invalid pk - object does not exist.")
	}
	rec := &postRecord{
		authorID: author.ID,
		post: ideas.Post{
			ID:        b.id(),
			Title:     in.Title,
			Author:    authorOf(author),
			Content:   in.Content,
			Category:  in.Category,
			Status:    ideas.StatusToVerify,
			CreatedAt: b.nowTime(),
		},
	}
	b.posts[rec.post.ID] = rec
	return b.view(rec, author), nil
}

func (b *board) ownedPost(user *User, id int) (*postRecord, error) {
	rec, ok := b.posts[id]
	if !ok {
		return nil, errNotFound
	}
	if rec.authorID != user.ID {
		return nil, errForbidden
	}
	return rec, nil
}

func (b *board) patchPost(user *User, id int, patch ideas.PostPatch) (ideas.Post, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.ownedPost(user, id)
	if err != nil {
		return ideas.Post{}, err
	}
	if patch.Category != nil && !b.activeCategory(*patch.Category) {
		return ideas.Post{}, badRequest("category: Invalid pk - object does not exist.")
	}
	if patch.Title != nil {
		rec.post.Title = *patch.Title
	}
	if patch.Content != nil {
		rec.post.Content = *patch.Content
	}
	if patch.Category != nil {
		rec.post.Category = *patch.Category
	}
	if patch.Status != nil {
		rec.post.Status = *patch.Status
	}
	return b.view(rec, user), nil
}

func (b *board) deletePost(user *User, id int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.ownedPost(user, id); err != nil {
		return err
	}
	delete(b.posts, id)
	delete(b.likes, id)
	delete(b.surveys, id)
	for cid, c := range b.comments {
		if c.comment.Post == id {
			delete(b.comments, cid)
		}
	}
	kept := b.notifications[:0]
	for _, n := range b.notifications {
		if n.notification.Post != id {
			kept = append(kept, n)
		}
	}
	b.notifications = kept
	return nil
}

func (b *board) listComments(postID int) ([]ideas.Comment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.posts[postID]; !ok {
		return nil, errNotFound
	}
	out := make([]ideas.Comment, 0)
	for _, c := range b.comments {
		if c.comment.Post == postID {
			out = append(out, c.comment)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (b *board) addComment(author *User, postID int, text string) (ideas.Comment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	post, ok := b.posts[postID]
	if !ok {
		return ideas.Comment{}, errNotFound
	}
	if strings.TrimSpace(text) == "" {
		return ideas.Comment{}, badRequest("text: This field may not be blank.")
	}
	rec := &commentRecord{
		authorID: author.ID,
		comment: ideas.Comment{
			ID:        b.id(),
			Post:      postID,
			Author:    authorOf(author),
			Text:      text,
			CreatedAt: b.nowTime(),
		},
	}
	b.comments[rec.comment.ID] = rec
	commentID := rec.comment.ID
	b.notify(post.authorID, ideas.NotificationComment, author, postID, &commentID)
	return rec.comment, nil
}

func (b *board) ownedComment(user *User, id int) (*commentRecord, error) {
	rec, ok := b.comments[id]
	if !ok {
		return nil, &boardError{status: http.StatusNotFound, detail: "No Comment matches the given query."}
	}
	if rec.authorID != user.ID {
		return nil, errForbidden
	}
	return rec, nil
}

func (b *board) updateComment(user *User, id int, text string) (ideas.Comment, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	rec, err := b.ownedComment(user, id)
	if err != nil {
		return ideas.Comment{}, err
	}
	if strings.TrimSpace(text) == "" {
		return ideas.Comment{}, badRequest("text: This field may not be blank.")
	}
	rec.comment.Text = text
	return rec.comment, nil
}

func (b *board) deleteComment(user *User, id int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.ownedComment(user, id); err != nil {
		return err
	}
	delete(b.comments, id)
	return nil
}

func (b *board) toggleLike(user *User, postID int) (ideas.LikeStatus, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	post, ok := b.posts[postID]
	if !ok {
		return ideas.LikeStatus{}, errNotFound
	}
	if b.likes[postID] == nil {
		b.likes[postID] = make(map[int]bool)
	}
	if b.likes[postID][user.ID] {
		delete(b.likes[postID], user.ID)
		return ideas.LikeStatus{Status: "unliked"}, nil
	}
	b.likes[postID][user.ID] = true
	b.notify(post.authorID, ideas.NotificationLike, user, postID, nil)
	return ideas.LikeStatus{Status: "liked"}, nil
}

// saveSurvey creates (create=true) or replaces the survey of a post.
func (b *board) saveSurvey(user *User, postID int, in ideas.SurveyInput, create bool) (ideas.Survey, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, err := b.ownedPost(user, postID); err != nil {
		return ideas.Survey{}, err
	}
	_, exists := b.surveys[postID]
	if create && exists {
		return ideas.Survey{}, badRequest("post: post survey with this post already exists.")
	}
	if !create && !exists {
		return ideas.Survey{}, &boardError{status: http.StatusNotFound, detail: "No PostSurvey matches the given query."}
	}
	if err := validateSurvey(in); err != nil {
		return ideas.Survey{}, err
	}
	survey := CalculateSurvey(in)
	b.surveys[postID] = survey
	return survey, nil
}

func (b *board) listNotifications(user *User) []ideas.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]ideas.Notification, 0)
	for i := len(b.notifications) - 1; i >= 0; i-- {
		if n := b.notifications[i]; n.recipientID == user.ID {
			out = append(out, n.notification)
		}
	}
	return out
}

func (b *board) unreadCount(user *User) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := 0
	for _, n := range b.notifications {
		if n.recipientID == user.ID && !n.notification.IsRead {
			count++
		}
	}
	return count
}

func (b *board) markRead(user *User, id int) (ideas.Notification, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, n := range b.notifications {
		if n.notification.ID == id && n.recipientID == user.ID {
			b.read(n)
			return n.notification, nil
		}
	}
	return ideas.Notification{}, &boardError{status: http.StatusNotFound, detail: "No Notification matches the given query."}
}

func (b *board) markAllRead(user *User) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	updated := 0
	for _, n := range b.notifications {
		if n.recipientID == user.ID && !n.notification.IsRead {
			b.read(n)
			updated++
		}
	}
	return updated
}

func (b *board) read(n *notificationRecord) {
	if n.notification.IsRead {
		return
	}
	now := b.nowTime()
	n.notification.ReadAt = &now
	n.notification.IsRead = true
}

func (b *board) activeCategories() []ideas.Category {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]ideas.Category, 0, len(b.categories))
	for _, c := range b.categories {
		if c.IsActive {
			out = append(out, c)
		}
	}
	return out
}
