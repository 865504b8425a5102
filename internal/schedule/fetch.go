package schedule

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"likhtar/internal/queue"
	logx "likhtar/pkg/logx"
)

// DefaultSourceURL is the provider's schedule lookup page.
const DefaultSourceURL = "https://www.ztoe.com.ua/unhooking-search.php"

const defaultFetchTimeout = 30 * time.Second

// onColor marks a cell whose hour slot has power; any other background
// (including none at all) is an outage slot.
const onColor = "#ffffff"

// Fetcher scrapes the provider page into per-queue timelines.
//
// The page holds one table with a row per queue; the queue's slots start
// after a row-dependent number of header cells (queue.Code.Bias).
type Fetcher struct {
	url    string
	client *http.Client
	log    logx.Logger
}

func NewFetcher(url string, timeout time.Duration, log logx.Logger) *Fetcher {
	if strings.TrimSpace(url) == "" {
		url = DefaultSourceURL
	}
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Fetcher{
		url:    url,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Fetch retrieves the timeline for one queue. A nil timeline with nil error
// never happens: data absence is always an error so callers treat the queue
// as "no data this cycle".
func (f *Fetcher) Fetch(ctx context.Context, code queue.Code) (Timeline, error) {
	all, err := f.FetchAll(ctx)
	if err != nil {
		return nil, err
	}
	t, ok := all[code]
	if !ok || len(t) == 0 {
		return nil, fmt.Errorf("queue %s: no row on schedule page", code.Label())
	}
	return t, nil
}

// FetchAll retrieves the page once and parses every queue's row.
func (f *Fetcher) FetchAll(ctx context.Context) (map[queue.Code]Timeline, error) {
	doc, err := f.fetchDocument(ctx)
	if err != nil {
		return nil, err
	}
	return parseTimelines(doc)
}

func (f *Fetcher) fetchDocument(ctx context.Context) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch schedule page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch schedule page: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse schedule page: %w", err)
	}
	return doc, nil
}

// scheduleTableIndex selects the timetable among the page's layout tables.
const scheduleTableIndex = 3

func parseTimelines(doc *goquery.Document) (map[queue.Code]Timeline, error) {
	tables := doc.Find("table")
	if tables.Length() <= scheduleTableIndex {
		return nil, fmt.Errorf("schedule page layout changed: %d tables", tables.Length())
	}
	rows := tables.Eq(scheduleTableIndex).Find("tr")

	out := make(map[queue.Code]Timeline)
	for _, code := range queue.All() {
		// Index is 1-based and the table opens with two non-queue rows
		// (title and hours), so the first data row sits at index 2.
		ri := 1 + code.Index()
		if rows.Length() <= ri {
			continue
		}
		row := rows.Eq(ri)
		t := parseRow(row, code.Bias())
		if len(t) > 0 {
			out[code] = t
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("schedule page layout changed: no queue rows parsed")
	}
	return out, nil
}

func parseRow(row *goquery.Selection, bias int) Timeline {
	cells := row.Find("td")
	if cells.Length() <= bias {
		return nil
	}

	t := make(Timeline, 0, cells.Length()-bias)
	cells.Each(func(i int, cell *goquery.Selection) {
		if i < bias {
			return
		}
		if cellBackground(cell) == onColor {
			t = append(t, 0)
		} else {
			t = append(t, 1)
		}
	})
	return t
}

// cellBackground extracts the background color from an inline style.
// A cell without one counts as an outage slot, same as any non-white color.
func cellBackground(cell *goquery.Selection) string {
	style := cell.AttrOr("style", "")
	for _, part := range strings.Split(style, ";") {
		part = strings.TrimSpace(part)
		if strings.HasPrefix(part, "background") {
			if _, v, ok := strings.Cut(part, ":"); ok {
				return strings.ToLower(strings.TrimSpace(v))
			}
		}
	}
	return ""
}
