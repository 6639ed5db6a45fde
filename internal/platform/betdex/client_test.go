package betdex

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

func newTestClient(t *testing.T, routes map[string]string) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		body, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return New(Config{BaseURL: srv.URL, APIKey: "key"}, srv.Client(), slog.New(slog.DiscardHandler))
}

func TestListEventsWrappedAndSplit(t *testing.T) {
	c := newTestClient(t, map[string]string{
		"/events": `{"data":[
			{"id":7,"name":"Barcelona v Real Madrid","competition":"La Liga","startTime":"2025-01-12T19:00:00Z","sport":"Football"},
			{"id":"8","title":"Arsenal vs Tottenham","homeTeam":"Arsenal FC","awayTeam":"Spurs","league":"EPL","start":"2025-01-11T18:30:00Z"}
		]}`,
	})

	events, err := c.ListEvents(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "7", events[0].ID)
	assert.Equal(t, "Barcelona", events[0].Home)
	assert.Equal(t, "Real Madrid", events[0].Away)
	assert.Equal(t, "La Liga", events[0].League)
	assert.Equal(t, "Football", events[0].Category)

	assert.Equal(t, "Arsenal FC", events[1].Home)
	assert.Equal(t, "Spurs", events[1].Away)
	assert.Equal(t, "2025-01-11T18:30:00Z", events[1].Kickoff)
}

func TestListMarketsAndBookShapes(t *testing.T) {
	c := newTestClient(t, map[string]string{
		"/events/7/markets": `[{"id":"m-7","title":"Full Time Result","marketType":"FULL_TIME_RESULT","outcomes":[
			{"id":"s1","title":"Barcelona"},{"id":"s2","title":"Draw"},{"id":"s3","title":"Real Madrid"}]}]`,
		"/markets/m-7/book": `{"data":{"marketId":"m-7","runners":[
			{"outcomeId":"s1","availableToBack":[{"price":"1.65"}],"availableToLay":[1.70]},
			{"outcomeId":"s3","back":{"price":2.8},"lay":2.9}]}}`,
	})
	ctx := context.Background()

	markets, err := c.ListMarkets(ctx, "7")
	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.Equal(t, "Full Time Result", markets[0].Name)
	assert.Equal(t, "FULL_TIME_RESULT", markets[0].Type)
	assert.Equal(t, "7", markets[0].EventID)
	require.Len(t, markets[0].Runners, 3)
	assert.Equal(t, "Real Madrid", markets[0].Runners[2].Name)

	book, err := c.ListBook(ctx, "m-7")
	require.NoError(t, err)
	require.Len(t, book.Runners, 2)
	assert.Equal(t, "s1", book.Runners[0].SelectionID)
	assert.InDelta(t, 1.65, *book.Runners[0].BestBack, 1e-12)
	assert.InDelta(t, 1.70, *book.Runners[0].BestLay, 1e-12)
	assert.InDelta(t, 2.80, *book.Runners[1].BestBack, 1e-12)
	assert.InDelta(t, 2.90, *book.Runners[1].BestLay, 1e-12)
}

func TestNotFound(t *testing.T) {
	c := newTestClient(t, nil)
	_, err := c.ListBook(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
}
