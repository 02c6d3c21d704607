package briefing_test

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/podsmith/backend/internal/briefing"
	"github.com/podsmith/backend/internal/models"
	"github.com/podsmith/backend/internal/newsapi"
)

type stubFetcher struct {
	result *newsapi.Result
	err    error
	calls  []newsapi.Query
}

func (s *stubFetcher) Fetch(_ context.Context, q newsapi.Query) (*newsapi.Result, error) {
	s.calls = append(s.calls, q)
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

var fixedNow = time.Date(2025, 7, 18, 14, 30, 0, 0, time.UTC)

func newService(f briefing.Fetcher) *briefing.Service {
	return briefing.NewService(briefing.Deps{
		Fetcher: f,
		Clock:   func() time.Time { return fixedNow },
		NewID:   func() string { return "briefing-1" },
	})
}

func raw(id, name, title, published string) models.RawArticle {
	return models.RawArticle{
		Source:      models.RawSource{ID: id, Name: name},
		Title:       title,
		PublishedAt: published,
	}
}

func TestBuildEndToEnd(t *testing.T) {
	fetcher := &stubFetcher{result: &newsapi.Result{
		TotalResults: 42,
		Articles: []models.RawArticle{
			raw("espn", "ESPN", "Knicks  beat Celtics", "2025-07-17T20:00:00Z"),
			raw("techcrunch", "TechCrunch", "Tesla Stock Soars After Earnings", "2025-07-17T09:00:00Z"),
			raw("wired", "Wired", "Tesla stock soars after earnings", "2025-07-16T09:00:00Z"),
			raw("the-verge", "The Verge", "Tesla and the Knicks? A sponsorship deal", "2025-07-16T12:00:00Z"),
			raw("fox-sports", "Fox Sports", "Yankees walk off", ""),
			raw("", "Some Blog", "Knicks rumor mill", "2025-07-16"),
			raw("espn", "ESPN", "Knicks beat Celtics!", "2025-07-17"),
		},
	}}

	doc, err := newService(fetcher).Build(context.Background(), briefing.Request{
		Categories: []string{"Technology", "Sports"},
		Keywords:   []string{"Tesla", "Knicks"},
	})
	require.NoError(t, err)

	require.Len(t, fetcher.calls, 1)
	q := fetcher.calls[0]
	require.Equal(t, "2025-07-16", q.From)
	require.Equal(t, "2025-07-18", q.To)
	require.Equal(t, []string{"Tesla", "Knicks"}, q.Keywords)
	require.Equal(t, []string{
		"techcrunch", "wired", "the-verge", "engadget", "ars-technica",
		"espn", "fox-sports", "the-sport-bible", "bleacher-report", "talksport",
	}, q.Sources)

	require.Equal(t, "briefing-1", doc.ID)
	require.Equal(t, 5, doc.Settings.ResultsReported)
	require.Equal(t, 42, doc.Settings.TotalResults)
	require.Equal(t, "ballad", doc.Settings.Voice)
	require.Equal(t, models.WordCount{Target: 890, Low: 881, High: 898}, doc.Settings.WordCount)
	require.Equal(t, fixedNow, doc.Settings.GeneratedAt)
	require.Equal(t, "TechCrunch", doc.Settings.Sources[0])

	require.Len(t, doc.Articles, 2)
	tech := doc.Articles[0]
	require.Equal(t, "Technology", tech.Category)
	require.Equal(t, "Tesla", tech.Buckets[0].Keyword)
	require.Equal(t, "Tesla and the Knicks? A sponsorship deal", tech.Buckets[0].Articles[0].Title)
	require.Equal(t, "Tesla Stock Soars After Earnings", tech.Buckets[0].Articles[1].Title)
	require.Equal(t, "Knicks", tech.Buckets[1].Keyword)

	sports := doc.Articles[1]
	require.Equal(t, "Sports", sports.Category)
	require.Equal(t, "Knicks", sports.Buckets[0].Keyword)
	require.Equal(t, "Knicks beat Celtics", sports.Buckets[0].Articles[0].Title)
	require.Equal(t, models.Unmatched, sports.Buckets[1].Keyword)
	require.Equal(t, "Yankees walk off", sports.Buckets[1].Articles[0].Title)

	require.Equal(t, models.Counts{
		{Category: "Technology", Buckets: []models.BucketCount{{Keyword: "Tesla", Count: 2}, {Keyword: "Knicks", Count: 1}}},
		{Category: "Sports", Buckets: []models.BucketCount{{Keyword: "Knicks", Count: 1}, {Keyword: models.Unmatched, Count: 1}}},
	}, doc.GroupCounts)
}

func TestBuildNoKeywords(t *testing.T) {
	fetcher := &stubFetcher{result: &newsapi.Result{Articles: []models.RawArticle{
		raw("cnn", "CNN", "Storm hits coast", "2025-07-18T01:00:00Z"),
		raw("reuters", "Reuters", "Markets open flat", "2025-07-16T01:00:00Z"),
		raw("fox-news", "Fox News", "Senate votes on bill", "2025-07-17T01:00:00Z"),
	}}}

	doc, err := newService(fetcher).Build(context.Background(), briefing.Request{
		Categories: []string{"General"},
	})
	require.NoError(t, err)
	require.Empty(t, fetcher.calls[0].Keywords)
	require.Equal(t, []string{}, doc.Settings.Keywords)

	require.Len(t, doc.Articles, 1)
	bucket := doc.Articles[0].Buckets[0]
	require.Equal(t, models.NoKeywords, bucket.Keyword)
	require.Equal(t, "Markets open flat", bucket.Articles[0].Title)
	require.Equal(t, "Senate votes on bill", bucket.Articles[1].Title)
	require.Equal(t, "Storm hits coast", bucket.Articles[2].Title)
}

func TestBuildCustomSourcesAndExplicitDates(t *testing.T) {
	fetcher := &stubFetcher{result: &newsapi.Result{}}
	doc, err := newService(fetcher).Build(context.Background(), briefing.Request{
		Categories:       []string{"General", "Politics"},
		GeneralSources:   []string{"Breitbart", "CNN"},
		PoliticalSources: []string{"The Hill", "CNN"},
		StartDate:        "2025-07-01",
		EndDate:          "2025-07-04",
		Speed:            "Fast",
		Voice:            "female2",
		LengthMinutes:    10,
	})
	require.NoError(t, err)

	q := fetcher.calls[0]
	require.Equal(t, []string{"breitbart-news", "cnn", "the-hill"}, q.Sources)
	require.Equal(t, "2025-07-01", q.From)
	require.Equal(t, "2025-07-04", q.To)

	require.Equal(t, 3, doc.Settings.TimeframeDays)
	require.Equal(t, "shimmer", doc.Settings.Voice)
	require.Equal(t, 1.25, doc.Settings.SpeechRate)
	require.Equal(t, 2230, doc.Settings.WordCount.Target)
	require.Empty(t, doc.Articles)
	require.Empty(t, doc.GroupCounts)

	data, err := json.Marshal(doc)
	require.NoError(t, err)
	require.Contains(t, string(data), `"articles":{}`)
}

func TestBuildFetchFailurePropagates(t *testing.T) {
	upstream := &newsapi.FetchError{Status: 429, Code: "rateLimited", Message: "slow down"}
	_, err := newService(&stubFetcher{err: upstream}).Build(context.Background(), briefing.Request{
		Categories: []string{"Sports"},
	})
	require.ErrorIs(t, err, newsapi.ErrFetchFailed)

	var fe *newsapi.FetchError
	require.True(t, errors.As(err, &fe))
	require.Equal(t, 429, fe.Status)
}

func TestBuildValidation(t *testing.T) {
	tests := []struct {
		name string
		req  briefing.Request
	}{
		{name: "no categories", req: briefing.Request{Keywords: []string{"x"}}},
		{name: "blank categories", req: briefing.Request{Categories: []string{" "}}},
		{name: "unknown category", req: briefing.Request{Categories: []string{"Weather"}}},
		{name: "unknown speed", req: briefing.Request{Categories: []string{"Sports"}, Speed: "Ludicrous"}},
		{name: "unknown voice", req: briefing.Request{Categories: []string{"Sports"}, Voice: "robot"}},
		{name: "negative length", req: briefing.Request{Categories: []string{"Sports"}, LengthMinutes: -1}},
		{name: "huge length", req: briefing.Request{Categories: []string{"Sports"}, LengthMinutes: math.MaxInt}},
		{name: "length above max", req: briefing.Request{Categories: []string{"Sports"}, LengthMinutes: briefing.MaxLengthMinutes + 1}},
		{name: "reserved keyword", req: briefing.Request{Categories: []string{"Sports"}, Keywords: []string{"Knicks", " __UNMATCHED__ "}}},
		{name: "reserved no keywords slot", req: briefing.Request{Categories: []string{"Sports"}, Keywords: []string{"__NO_KEYWORDS__"}}},
		{name: "negative timeframe", req: briefing.Request{Categories: []string{"Sports"}, TimeframeDays: -3}},
		{name: "only start date", req: briefing.Request{Categories: []string{"Sports"}, StartDate: "2025-07-01"}},
		{name: "bad date", req: briefing.Request{Categories: []string{"Sports"}, StartDate: "07/01/2025", EndDate: "2025-07-02"}},
		{name: "inverted dates", req: briefing.Request{Categories: []string{"Sports"}, StartDate: "2025-07-05", EndDate: "2025-07-02"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &stubFetcher{result: &newsapi.Result{}}
			_, err := newService(fetcher).Build(context.Background(), tt.req)
			require.ErrorIs(t, err, briefing.ErrInvalidRequest)
			require.Empty(t, fetcher.calls)
		})
	}
}

func TestBuildWithoutFetcher(t *testing.T) {
	_, err := briefing.NewService(briefing.Deps{}).Build(context.Background(), briefing.Request{Categories: []string{"Sports"}})
	require.ErrorIs(t, err, briefing.ErrNotConfigured)
}
