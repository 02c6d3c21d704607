package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Sentinel keyword slots.
const (
	NoKeywords = "__NO_KEYWORDS__"
	Unmatched  = "__UNMATCHED__"
)

// Bucket holds the articles filed under one keyword (or sentinel) of a category.
// Articles are shared with other buckets, never copied.
type Bucket struct {
	Keyword  string
	Articles []*Article
}

// CategoryGroup is one category with its buckets in output order.
type CategoryGroup struct {
	Category string
	Buckets  []Bucket
}

// Groups is the ordered category -> keyword -> articles structure.
// It encodes as a JSON object whose key order matches the slice order.
type Groups []CategoryGroup

// BucketCount is the size of a single bucket.
type BucketCount struct {
	Keyword string
	Count   int
}

// CategoryCount mirrors CategoryGroup with counts instead of articles.
type CategoryCount struct {
	Category string
	Buckets  []BucketCount
}

// Counts is the ordered category -> keyword -> count structure.
type Counts []CategoryCount

// WordCount bounds the length of the generated script.
type WordCount struct {
	Target int `json:"target"`
	Low    int `json:"low"`
	High   int `json:"high"`
}

// Settings echoes the resolved request inputs.
type Settings struct {
	Categories      []string  `json:"categories"`
	Keywords        []string  `json:"keywords"`
	Sources         []string  `json:"sources"`
	StartDate       string    `json:"start_date"`
	EndDate         string    `json:"end_date"`
	TimeframeDays   int       `json:"timeframe_days"`
	LengthMinutes   int       `json:"podcast_length_min"`
	Speed           string    `json:"speech_speed"`
	SpeechRate      float64   `json:"speech_rate"`
	Voice           string    `json:"voice"`
	WordCount       WordCount `json:"word_count"`
	ResultsReported int       `json:"results_reported"`
	TotalResults    int       `json:"total_results"`
	GeneratedAt     time.Time `json:"generated_at"`
}

// Briefing is the document handed to the script-generation collaborator.
type Briefing struct {
	ID          string   `json:"id"`
	Settings    Settings `json:"settings"`
	Articles    Groups   `json:"articles"`
	GroupCounts Counts   `json:"group_counts"`
}

// MarshalJSON implements json.Marshaler.
func (g Groups) MarshalJSON() ([]byte, error) {
	return encodeObject(len(g), func(i int) (string, any, error) {
		inner, err := encodeObject(len(g[i].Buckets), func(j int) (string, any, error) {
			articles := g[i].Buckets[j].Articles
			if articles == nil {
				articles = []*Article{}
			}
			return g[i].Buckets[j].Keyword, articles, nil
		})
		return g[i].Category, json.RawMessage(inner), err
	})
}

// UnmarshalJSON implements json.Unmarshaler, keeping key order.
func (g *Groups) UnmarshalJSON(data []byte) error {
	out := Groups{}
	err := decodeObject(data, func(category string, raw json.RawMessage) error {
		group := CategoryGroup{Category: category}
		err := decodeObject(raw, func(keyword string, raw json.RawMessage) error {
			var articles []*Article
			if err := json.Unmarshal(raw, &articles); err != nil {
				return fmt.Errorf("bucket %s/%s: %w", category, keyword, err)
			}
			group.Buckets = append(group.Buckets, Bucket{Keyword: keyword, Articles: articles})
			return nil
		})
		if err != nil {
			return err
		}
		out = append(out, group)
		return nil
	})
	if err != nil {
		return err
	}
	*g = out
	return nil
}

// MarshalJSON implements json.Marshaler.
func (c Counts) MarshalJSON() ([]byte, error) {
	return encodeObject(len(c), func(i int) (string, any, error) {
		inner, err := encodeObject(len(c[i].Buckets), func(j int) (string, any, error) {
			return c[i].Buckets[j].Keyword, c[i].Buckets[j].Count, nil
		})
		return c[i].Category, json.RawMessage(inner), err
	})
}

// UnmarshalJSON implements json.Unmarshaler, keeping key order.
func (c *Counts) UnmarshalJSON(data []byte) error {
	out := Counts{}
	err := decodeObject(data, func(category string, raw json.RawMessage) error {
		cc := CategoryCount{Category: category}
		err := decodeObject(raw, func(keyword string, raw json.RawMessage) error {
			var n int
			if err := json.Unmarshal(raw, &n); err != nil {
				return fmt.Errorf("count %s/%s: %w", category, keyword, err)
			}
			cc.Buckets = append(cc.Buckets, BucketCount{Keyword: keyword, Count: n})
			return nil
		})
		if err != nil {
			return err
		}
		out = append(out, cc)
		return nil
	})
	if err != nil {
		return err
	}
	*c = out
	return nil
}

func encodeObject(n int, entry func(i int) (string, any, error)) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i := 0; i < n; i++ {
		key, value, err := entry(i)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func decodeObject(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	_, err = dec.Token()
	return err
}
