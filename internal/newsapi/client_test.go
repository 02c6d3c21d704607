package newsapi_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/podsmith/backend/internal/newsapi"
)

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchBuildsQuery(t *testing.T) {
	var got *http.Request
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok","totalResults":2,"articles":[
			{"source":{"id":"espn","name":"ESPN"},"title":"Knicks win","description":null,"url":"https://espn.com/1","urlToImage":null,"publishedAt":"2025-07-16T10:00:00Z","content":"body"},
			{"source":{"id":null,"name":"Wired"},"title":"Tesla robots","publishedAt":"2025-07-17"}
		]}`))
	})

	client := newsapi.New(srv.URL, "secret", time.Second, 50, nil)
	res, err := client.Fetch(context.Background(), newsapi.Query{
		Sources:  []string{"espn", "wired"},
		Keywords: []string{"Tesla", "Knicks"},
		From:     "2025-07-16",
		To:       "2025-07-18",
	})
	require.NoError(t, err)

	require.Equal(t, "/v2/everything", got.URL.Path)
	q := got.URL.Query()
	require.Equal(t, "espn,wired", q.Get("sources"))
	require.Equal(t, "Tesla OR Knicks", q.Get("qInTitle"))
	require.Equal(t, "2025-07-16", q.Get("from"))
	require.Equal(t, "2025-07-18", q.Get("to"))
	require.Equal(t, "50", q.Get("pageSize"))
	require.Equal(t, "popularity", q.Get("sortBy"))
	require.Equal(t, "en", q.Get("language"))
	require.Equal(t, "secret", got.Header.Get("X-Api-Key"))

	require.Equal(t, 2, res.TotalResults)
	require.Len(t, res.Articles, 2)
	require.Equal(t, "espn", res.Articles[0].Source.ID)
	require.Equal(t, "", res.Articles[0].Description)
	require.Equal(t, "", res.Articles[1].Source.ID)
	require.Equal(t, "Wired", res.Articles[1].Source.Name)
}

func TestFetchOmitsEmptyKeywords(t *testing.T) {
	var rawQuery string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`{"status":"ok","totalResults":0,"articles":[]}`))
	})

	res, err := newsapi.New(srv.URL, "k", time.Second, 0, nil).Fetch(context.Background(), newsapi.Query{Sources: []string{"cnn"}})
	require.NoError(t, err)
	require.Empty(t, res.Articles)
	require.NotContains(t, rawQuery, "qInTitle")
	require.Contains(t, rawQuery, "pageSize=100")
}

func TestFetchNon2xxIsFetchFailed(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":"error","code":"apiKeyInvalid","message":"Your API key is invalid"}`))
	})

	_, err := newsapi.New(srv.URL, "bad", time.Second, 0, nil).Fetch(context.Background(), newsapi.Query{})
	require.Error(t, err)
	require.True(t, errors.Is(err, newsapi.ErrFetchFailed))

	var fe *newsapi.FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, http.StatusUnauthorized, fe.Status)
	require.Equal(t, "apiKeyInvalid", fe.Code)
	require.Equal(t, "Your API key is invalid", fe.Message)
}

func TestFetchNon2xxPlainBody(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	_, err := newsapi.New(srv.URL, "k", time.Second, 0, nil).Fetch(context.Background(), newsapi.Query{})
	var fe *newsapi.FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, http.StatusBadGateway, fe.Status)
	require.Equal(t, "upstream exploded", fe.Message)
}

func TestFetchErrorStatusInBody(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","code":"rateLimited","message":"slow down"}`))
	})

	_, err := newsapi.New(srv.URL, "k", time.Second, 0, nil).Fetch(context.Background(), newsapi.Query{})
	require.ErrorIs(t, err, newsapi.ErrFetchFailed)
	require.Contains(t, err.Error(), "rateLimited")
}

func TestFetchMalformedBodiesAreEmpty(t *testing.T) {
	bodies := map[string]string{
		"empty":             "",
		"no articles key":   `{"status":"ok","totalResults":7}`,
		"not json":          `<html>oops</html>`,
		"articles not list": `{"status":"ok","articles":"nope"}`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})
			res, err := newsapi.New(srv.URL, "k", time.Second, 0, nil).Fetch(context.Background(), newsapi.Query{})
			require.NoError(t, err)
			require.Empty(t, res.Articles)
		})
	}
}

func TestFetchCoercesMalformedRecords(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok","articles":[{"title":42,"url":"https://x"},7]}`))
	})

	res, err := newsapi.New(srv.URL, "k", time.Second, 0, nil).Fetch(context.Background(), newsapi.Query{})
	require.NoError(t, err)
	require.Len(t, res.Articles, 2)
	require.Equal(t, "", res.Articles[0].Title)
	require.Equal(t, "https://x", res.Articles[0].URL)
}

func TestFetchTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	_, err := newsapi.New(srv.URL, "k", 20*time.Millisecond, 0, nil).Fetch(context.Background(), newsapi.Query{})
	require.ErrorIs(t, err, newsapi.ErrFetchFailed)

	var fe *newsapi.FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, 0, fe.Status)
	require.Equal(t, "timeout", fe.Code)
}
