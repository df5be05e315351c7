package gsheets

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"sheetpipe/internal/failure"
)

const (
	ScopeFeeds = "https://spreadsheets.google.com/feeds"
	ScopeDrive = "https://www.googleapis.com/auth/drive"

	spreadsheetMimeType = "application/vnd.google-apps.spreadsheet"
)

// Authenticate parses a service-account key document and fetches a first
// token so bad credentials surface before any API call.
func Authenticate(ctx context.Context, keyJSON []byte) (oauth2.TokenSource, error) {
	creds, err := google.CredentialsFromJSON(ctx, keyJSON, ScopeFeeds, ScopeDrive)
	if err != nil {
		return nil, failure.New(failure.KindAuth, "parse service account", err)
	}
	if _, err := creds.TokenSource.Token(); err != nil {
		return nil, failure.New(failure.KindAuth, "fetch token", err)
	}
	return creds.TokenSource, nil
}

// Client finds spreadsheets through Drive and reads them through Sheets.
type Client struct {
	drive  *drive.Service
	sheets *sheets.Service
}

func New(d *drive.Service, s *sheets.Service) *Client {
	return &Client{drive: d, sheets: s}
}

// NewClient builds Drive and Sheets services authorised by ts.
func NewClient(ctx context.Context, ts oauth2.TokenSource) (*Client, error) {
	d, err := drive.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, failure.New(failure.KindAuth, "create drive service", err)
	}
	s, err := sheets.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, failure.New(failure.KindAuth, "create sheets service", err)
	}
	return New(d, s), nil
}

// Sheet is the content of one worksheet, every cell rendered as text.
type Sheet struct {
	SpreadsheetID string
	Title         string
	Rows          [][]string
}

// ReadFirstSheet opens the spreadsheet named exactly name and returns all
// values of its first worksheet.
func (c *Client) ReadFirstSheet(ctx context.Context, name string) (*Sheet, error) {
	id, err := c.find(ctx, name)
	if err != nil {
		return nil, err
	}

	title, err := c.firstSheetTitle(ctx, id)
	if err != nil {
		return nil, err
	}

	vr, err := c.sheets.Spreadsheets.Values.Get(id, a1Sheet(title)).
		ValueRenderOption("FORMATTED_VALUE").
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("read values", err)
	}

	return &Sheet{
		SpreadsheetID: id,
		Title:         title,
		Rows:          toRows(vr.Values),
	}, nil
}

func (c *Client) find(ctx context.Context, name string) (string, error) {
	q := fmt.Sprintf("name = '%s' and mimeType = '%s' and trashed = false", escapeQuery(name), spreadsheetMimeType)

	res, err := c.drive.Files.List().
		Q(q).
		Fields("files(id, name)").
		PageSize(10).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", classify("find spreadsheet", err)
	}
	for _, f := range res.Files {
		if f.Name == name {
			return f.Id, nil
		}
	}
	return "", failure.Newf(failure.KindNotFound, "find spreadsheet", "no spreadsheet named %q is shared with the service account", name)
}

func (c *Client) firstSheetTitle(ctx context.Context, id string) (string, error) {
	ss, err := c.sheets.Spreadsheets.Get(id).
		Fields("sheets.properties").
		Context(ctx).
		Do()
	if err != nil {
		return "", classify("get spreadsheet", err)
	}

	var first *sheets.SheetProperties
	for _, s := range ss.Sheets {
		if s.Properties == nil {
			continue
		}
		if first == nil || s.Properties.Index < first.Index {
			first = s.Properties
		}
	}
	if first == nil {
		return "", failure.Newf(failure.KindNotFound, "get spreadsheet", "spreadsheet %s has no worksheets", id)
	}
	return first.Title, nil
}

// classify maps Google API status codes onto failure kinds.
func classify(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return failure.New(failure.KindAuth, op, err)
		case http.StatusNotFound:
			return failure.New(failure.KindNotFound, op, err)
		}
	}
	return failure.New(failure.KindFetch, op, err)
}

func escapeQuery(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

// a1Sheet quotes a sheet title for use as an A1 range covering the whole sheet.
func a1Sheet(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// toRows renders cells as strings and pads short rows to the widest row.
func toRows(values [][]any) [][]string {
	width := 0
	for _, r := range values {
		if len(r) > width {
			width = len(r)
		}
	}

	rows := make([][]string, 0, len(values))
	for _, r := range values {
		row := make([]string, width)
		for i, v := range r {
			switch x := v.(type) {
			case nil:
			case string:
				row[i] = x
			default:
				row[i] = fmt.Sprint(x)
			}
		}
		rows = append(rows, row)
	}
	return rows
}
