package board

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mofyally02/atozbot/internal/model"
)

// Selectors of the portal's job list and job detail pages.
const (
	ListContainerSelector = "section.content__table table tbody"
	rowSelector           = "section.content__table table tbody tr.table__row"
	cellSelector          = "td.table__data"
	placeholderSelector   = "td[colspan]"
	detailLinkSelector    = "a[href*='interpreter-jobs']"
	detailRowSelector     = "table.table.table--detail tr"
	detailBlockSelector   = ".job__detail"
	DetailReadySelector   = "table.table--detail, .job__detail"

	interpreterDetailsLabel = "interpreter details"
	minCells                = 8
)

// ParseJobList extracts job records from the job list HTML. Rows with fewer
// than eight data cells, placeholder rows and rows without a reference are
// dropped. Detail links are resolved against baseURL.
func ParseJobList(html, baseURL string) ([]model.JobRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse job list: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}

	var jobs []model.JobRecord
	doc.Find(rowSelector).Each(func(_ int, row *goquery.Selection) {
		if row.Find(placeholderSelector).Length() > 0 {
			return
		}
		cells := row.Find(cellSelector)
		if cells.Length() < minCells {
			return
		}
		text := func(i int) string { return cellText(cells.Eq(i)) }

		job := model.JobRecord{
			Ref:             text(0),
			SubmittedAt:     text(1),
			AppointmentDate: text(2),
			AppointmentTime: text(3),
			Duration:        text(4),
			Language:        text(5),
			Status:          text(6),
		}
		if job.Ref == "" {
			return
		}
		if href, ok := row.Find(detailLinkSelector).First().Attr("href"); ok {
			job.DetailURL = resolve(base, href)
		}
		jobs = append(jobs, job)
	})
	return jobs, nil
}

// InterpreterDetails returns the text next to the "Interpreter details" label
// of a job detail page, or "" when the label is absent.
func InterpreterDetails(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse job detail: %w", err)
	}

	var found string
	doc.Find(detailRowSelector).EachWithBreak(func(_ int, row *goquery.Selection) bool {
		cells := row.Children().Filter("th, td")
		if cells.Length() < 2 || !isDetailsLabel(cells.Eq(0)) {
			return true
		}
		found = cellText(cells.Eq(1))
		return false
	})
	if found != "" {
		return found, nil
	}

	doc.Find(detailBlockSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !isDetailsLabel(s) {
			return true
		}
		found = cellText(s.Next())
		return false
	})
	return found, nil
}

func isDetailsLabel(s *goquery.Selection) bool {
	return strings.Contains(strings.ToLower(s.Text()), interpreterDetailsLabel)
}

// cellText trims a cell's text and collapses internal whitespace.
func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}
