package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/aussiebroadwan/jwtclient/internal/devserver"
	"github.com/aussiebroadwan/jwtclient/pkg/authclient"
	"golang.org/x/sync/errgroup"
)

// FetchDashboard loads every widget concurrently through one client. If
// the access token is stale the fetches share a single refresh.
func FetchDashboard(ctx context.Context, api *authclient.Client, widgets []string) (map[string]devserver.WidgetResponse, error) {
	g, ctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	out := make(map[string]devserver.WidgetResponse, len(widgets))

	for _, w := range widgets {
		g.Go(func() error {
			var resp devserver.WidgetResponse
			if err := api.Get(ctx, "/dashboard/"+w, &resp); err != nil {
				return fmt.Errorf("widget %s: %w", w, err)
			}

			mu.Lock()
			out[w] = resp
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
