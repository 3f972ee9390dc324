package jobs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/comtower/sms-relay/internal/service"
)

// Dashboard row columns, left to right.
const (
	colExternalID = iota
	colTimestamp
	colComPortNum
	colReceiver
	colSender
	colContent
	monitorColumnCount
)

// Timestamp formats the upstream dashboard has been seen emitting.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006/01/02 15:04:05",
	time.RFC3339,
}

// MonitorJob polls the upstream SMS dashboard and feeds new rows into the
// ingest pipeline. The target URL is runtime config; while it is unset the
// job idles.
type MonitorJob struct {
	ingest     *service.IngestService
	settings   *service.SettingsService
	httpClient *http.Client
	interval   time.Duration
	done       chan struct{}
}

func NewMonitorJob(
	ingest *service.IngestService,
	settings *service.SettingsService,
	interval time.Duration,
	fetchTimeout time.Duration,
) *MonitorJob {
	return &MonitorJob{
		ingest:     ingest,
		settings:   settings,
		httpClient: &http.Client{Timeout: fetchTimeout},
		interval:   interval,
		done:       make(chan struct{}),
	}
}

func (j *MonitorJob) Start() {
	go j.run()
	log.Info().Dur("interval", j.interval).Msg("monitor job started")
}

func (j *MonitorJob) Stop() {
	close(j.done)
	log.Info().Msg("monitor job stopped")
}

func (j *MonitorJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.poll()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.poll()
		}
	}
}

func (j *MonitorJob) poll() {
	ctx, cancel := context.WithTimeout(context.Background(), j.interval)
	defer cancel()

	targetURL := j.settings.TargetURL(ctx)
	if targetURL == "" {
		return
	}

	rows, err := j.scrape(ctx, targetURL)
	if err != nil {
		log.Error().Err(err).Str("url", targetURL).Msg("dashboard scrape failed")
		return
	}

	if _, err := j.ingest.Ingest(ctx, rows); err != nil {
		log.Error().Err(err).Msg("failed to ingest scraped messages")
	}
}

// scrape fetches the dashboard page and parses its SMS table. Transient
// fetch errors are retried with exponential backoff within the poll window.
func (j *MonitorJob) scrape(ctx context.Context, targetURL string) ([]service.ScrapedMessage, error) {
	var rows []service.ScrapedMessage

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}

		resp, err := j.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("dashboard returned status %d", resp.StatusCode)
		}

		rows, err = parseSmsTable(resp.Body)
		if err != nil {
			return backoff.Permanent(err)
		}
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		return nil, err
	}
	return rows, nil
}

// parseSmsTable walks the dashboard HTML and extracts one message per table
// body row. Rows with too few cells or an unparseable timestamp are skipped.
func parseSmsTable(r io.Reader) ([]service.ScrapedMessage, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var rows []service.ScrapedMessage
	for _, tr := range findRows(doc) {
		cells := cellTexts(tr)
		if len(cells) < monitorColumnCount {
			continue
		}

		ts, ok := parseTimestamp(cells[colTimestamp])
		if !ok {
			log.Warn().Str("value", cells[colTimestamp]).Msg("skipping row with unparseable timestamp")
			continue
		}

		rows = append(rows, service.ScrapedMessage{
			ExternalID:        cells[colExternalID],
			ComPort:           "COM" + cells[colComPortNum],
			ReceiverNumber:    cells[colReceiver],
			SenderNumber:      cells[colSender],
			Content:           cells[colContent],
			OriginalTimestamp: ts,
		})
	}
	return rows, nil
}

// findRows collects every tr under a tbody, anywhere in the document.
func findRows(n *html.Node) []*html.Node {
	var rows []*html.Node
	var walk func(*html.Node, bool)
	walk = func(n *html.Node, inBody bool) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "tbody":
				inBody = true
			case "tr":
				if inBody {
					rows = append(rows, n)
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c, inBody)
		}
	}
	walk(n, false)
	return rows
}

func cellTexts(tr *html.Node) []string {
	var cells []string
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "td" || c.Data == "th") {
			cells = append(cells, strings.TrimSpace(nodeText(c)))
		}
	}
	return cells
}

func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(nodeText(c))
	}
	return sb.String()
}

func parseTimestamp(value string) (time.Time, bool) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, value); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
