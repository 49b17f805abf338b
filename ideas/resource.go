package ideas

import (
	"context"
	"net/url"
	"strconv"

	"github.com/jrsteele09/kaizen-client/httpclient"
)

// Resource is the CRUD surface shared by every REST collection:
// list and create on the collection path, the rest on "<path><id>/".
type Resource[T any] struct {
	api      *httpclient.Client
	basePath string
}

// NewResource creates a Resource rooted at basePath.
func NewResource[T any](api *httpclient.Client, basePath string) Resource[T] {
	return Resource[T]{api: api, basePath: httpclient.EnsureTrailingSlash(basePath)}
}

func (r Resource[T]) Path() string {
	return r.basePath
}

func (r Resource[T]) item(id int, sub ...string) string {
	return httpclient.JoinPath(r.basePath, append([]string{strconv.Itoa(id)}, sub...)...)
}

func (r Resource[T]) List(ctx context.Context, params url.Values) ([]T, error) {
	return httpclient.Decode[[]T](r.api.Get(ctx, r.basePath, params))
}

func (r Resource[T]) Get(ctx context.Context, id int, params url.Values) (*T, error) {
	return httpclient.Decode[*T](r.api.Get(ctx, r.item(id), params))
}

func (r Resource[T]) Create(ctx context.Context, payload any) (*T, error) {
	return httpclient.Decode[*T](r.api.Post(ctx, r.basePath, payload))
}

func (r Resource[T]) Update(ctx context.Context, id int, payload any) (*T, error) {
	return httpclient.Decode[*T](r.api.Put(ctx, r.item(id), payload))
}

func (r Resource[T]) Patch(ctx context.Context, id int, payload any) (*T, error) {
	return httpclient.Decode[*T](r.api.Patch(ctx, r.item(id), payload))
}

func (r Resource[T]) Remove(ctx context.Context, id int) error {
	_, err := r.api.Delete(ctx, r.item(id))
	return err
}
