package model

import (
	"context"
	"time"
)

// Page is the browser capability the bot drives. Every wait is bounded and a
// timeout is reported as an error the caller may treat as "no data".
type Page interface {
	Navigate(ctx context.Context, url string) error
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	WaitIdle(ctx context.Context, timeout time.Duration) error
	HTML(ctx context.Context) (string, error)
	Query(ctx context.Context, selector string) ([]Element, error)
	Visible(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string) error
	Fill(ctx context.Context, selector, text string) error
}

// Element is a node returned by Page.Query.
type Element interface {
	Text() (string, error)
	Attribute(name string) (string, bool, error)
	Query(selector string) ([]Element, error)
	Click() error
}
