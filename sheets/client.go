package sheets

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/shimarch/smrkit/logging"
	"github.com/shimarch/smrkit/observe"
	"github.com/shimarch/smrkit/resilience"
	"github.com/shimarch/smrkit/secret"
)

// DefaultSheet is used when no sheet name is given.
const DefaultSheet = "Sheet1"

// Config selects credentials and limits.
type Config struct {
	// Scopes requested for user and service account tokens.
	// Default: ScopeReadOnly
	Scopes []string `koanf:"scopes"`

	// AutoSaveToken writes refreshed user tokens back to the manager.
	// Default: true
	AutoSaveToken bool `koanf:"auto_save_token"`

	// ServiceAccount uses the key in GSHEET_SERVICE_ACCOUNT instead of
	// the OAuth user flow.
	ServiceAccount bool `koanf:"service_account"`

	// Timeout bounds each client operation.
	// Default: 30s
	Timeout time.Duration `koanf:"timeout"`
}

// DefaultConfig returns the defaults.
func DefaultConfig() Config {
	return Config{
		Scopes:        []string{ScopeReadOnly},
		AutoSaveToken: true,
		Timeout:       30 * time.Second,
	}
}

// Client reads and writes spreadsheet values.
//
// Contract:
//   - Concurrency: safe for concurrent use.
//   - Errors are classified (see the package errors).
type Client struct {
	api      SpreadsheetsAPI
	cfg      Config
	logger   logging.Logger
	hc       *http.Client
	endpoint string
	mw       *observe.Middleware
	exec     *resilience.Executor
}

// Option configures a Client.
type Option func(*Client)

// WithConfig replaces the configuration. Zero Timeout and empty Scopes
// keep the defaults.
func WithConfig(cfg Config) Option {
	return func(c *Client) {
		if len(cfg.Scopes) == 0 {
			cfg.Scopes = c.cfg.Scopes
		}
		if cfg.Timeout <= 0 {
			cfg.Timeout = c.cfg.Timeout
		}
		c.cfg = cfg
	}
}

// WithScopes sets the OAuth scopes.
func WithScopes(scopes ...string) Option {
	return func(c *Client) { c.cfg.Scopes = slices.Clone(scopes) }
}

// WithServiceAccount switches to service account credentials.
func WithServiceAccount() Option {
	return func(c *Client) { c.cfg.ServiceAccount = true }
}

// WithAutoSaveToken controls whether refreshed user tokens are stored.
func WithAutoSaveToken(enabled bool) Option {
	return func(c *Client) { c.cfg.AutoSaveToken = enabled }
}

// WithLogger overrides the logger taken from the logging context.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient sets the base HTTP client for token and API requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithEndpoint overrides the Sheets API base URL.
func WithEndpoint(url string) Option {
	return func(c *Client) { c.endpoint = url }
}

// WithMiddleware instruments every operation.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(c *Client) { c.mw = mw }
}

func newClient(opts []Option) (*Client, error) {
	c := &Client{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		l, err := logging.Get()
		if err != nil {
			return nil, fmt.Errorf("sheets: %w", err)
		}
		c.logger = l
	}
	c.exec = resilience.NewExecutor(resilience.WithTimeout(c.cfg.Timeout))
	return c, nil
}

// New authenticates with the credentials stored in secrets and connects to
// the Sheets API. A token is fetched eagerly so credential problems surface
// here.
func New(ctx context.Context, secrets *secret.Manager, opts ...Option) (*Client, error) {
	if secrets == nil {
		return nil, fmt.Errorf("sheets: a secret manager is required")
	}
	c, err := newClient(opts)
	if err != nil {
		return nil, err
	}
	if c.hc != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.hc)
	}

	var ts oauth2.TokenSource
	if c.cfg.ServiceAccount {
		src, err := serviceAccountTokenSource(ctx, secrets, c.cfg.Scopes, c.hc, c.cfg.Timeout)
		if err != nil {
			return nil, err
		}
		var first *oauth2.Token
		err = c.exec.Execute(ctx, "", func(ctx context.Context) error {
			tok, err := src.token(ctx)
			first = tok
			return err
		})
		if err != nil {
			return nil, classify(err, "", "")
		}
		ts = oauth2.ReuseTokenSource(first, src)
	} else {
		ts, err = userTokenSource(ctx, secrets, c.cfg.Scopes, c.cfg.AutoSaveToken, c.logger)
		if err != nil {
			return nil, err
		}
		err = c.exec.Execute(ctx, "", func(context.Context) error {
			_, err := ts.Token()
			return err
		})
		if err != nil {
			return nil, classify(err, "", "")
		}
	}

	svcOpts := []option.ClientOption{option.WithHTTPClient(oauth2.NewClient(ctx, ts))}
	if c.endpoint != "" {
		svcOpts = append(svcOpts, option.WithEndpoint(c.endpoint))
	}
	svc, err := sheetsapi.NewService(ctx, svcOpts...)
	if err != nil {
		return nil, fmt.Errorf("sheets: create service: %w", err)
	}
	c.api = NewServiceAPI(svc)
	c.logger.Debug("Google Sheets client ready", logging.Fields{"service_account": c.cfg.ServiceAccount, "scopes": c.cfg.Scopes})
	return c, nil
}

// NewWithAPI returns a client over an existing API implementation.
func NewWithAPI(api SpreadsheetsAPI, opts ...Option) (*Client, error) {
	if api == nil {
		return nil, fmt.Errorf("sheets: api is required")
	}
	c, err := newClient(opts)
	if err != nil {
		return nil, err
	}
	c.api = api
	return c, nil
}

// Values returns every row of sheet, padded to equal width. An empty sheet
// name reads DefaultSheet.
func (c *Client) Values(ctx context.Context, spreadsheetID, sheet string) ([][]string, error) {
	if sheet == "" {
		sheet = DefaultSheet
	}
	var rows [][]string
	err := c.run(ctx, "values", spreadsheetID, func(ctx context.Context) error {
		found, err := c.hasSheet(ctx, spreadsheetID, sheet)
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %q", ErrSheetNotFound, sheet)
		}
		values, err := c.api.GetValues(ctx, spreadsheetID, sheetRange(sheet))
		if err != nil {
			return err
		}
		rows = stringRows(values)
		return nil
	})
	if err != nil {
		return nil, classify(err, spreadsheetID, sheet)
	}
	return rows, nil
}

// Update replaces the contents of sheet with a header row (the sorted keys
// of the first row) followed by one row per map.
func (c *Client) Update(ctx context.Context, spreadsheetID, sheet string, rows []map[string]any) error {
	if len(rows) == 0 {
		c.logger.Warning("No data provided to update. Skipping update.", logging.Fields{"sheet": sheet})
		return nil
	}
	header, values := mapRows(rows)
	return c.write(ctx, spreadsheetID, sheet, header, values)
}

// UpdateJSON is Update for a JSON array of objects. The header follows the
// key order of the first object.
func (c *Client) UpdateJSON(ctx context.Context, spreadsheetID, sheet string, data []byte) error {
	if len(data) == 0 {
		c.logger.Warning("No data provided to update. Skipping update.", logging.Fields{"sheet": sheet})
		return nil
	}
	header, values, err := decodeRows(data)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		c.logger.Warning("Empty data list provided. Skipping update.", logging.Fields{"sheet": sheet})
		return nil
	}
	return c.write(ctx, spreadsheetID, sheet, header, values)
}

func (c *Client) write(ctx context.Context, spreadsheetID, sheet string, header []string, values [][]any) error {
	if sheet == "" {
		sheet = DefaultSheet
	}
	grid := make([][]any, 0, len(values)+1)
	head := make([]any, len(header))
	for i, h := range header {
		head[i] = h
	}
	grid = append(grid, head)
	grid = append(grid, values...)

	err := c.run(ctx, "update", spreadsheetID, func(ctx context.Context) error {
		found, err := c.hasSheet(ctx, spreadsheetID, sheet)
		if err != nil {
			return err
		}
		if !found {
			c.logger.Info(fmt.Sprintf("Worksheet '%s' not found. Creating new worksheet.", sheet))
			if err := c.api.AddSheet(ctx, spreadsheetID, sheet, NewSheetRows, NewSheetColumns); err != nil {
				return err
			}
		}
		rng := sheetRange(sheet)
		if err := c.api.ClearValues(ctx, spreadsheetID, rng); err != nil {
			return err
		}
		return c.api.UpdateValues(ctx, spreadsheetID, rng+"!A1", grid)
	})
	if err != nil {
		return classify(err, spreadsheetID, sheet)
	}
	c.logger.Success(fmt.Sprintf("Successfully updated sheet '%s' with %d rows.", sheet, len(values)))
	return nil
}

func (c *Client) hasSheet(ctx context.Context, spreadsheetID, sheet string) (bool, error) {
	titles, err := c.api.SheetTitles(ctx, spreadsheetID)
	if err != nil {
		return false, err
	}
	return slices.Contains(titles, sheet), nil
}

func (c *Client) run(ctx context.Context, name, spreadsheetID string, fn func(context.Context) error) error {
	op := observe.Operation{Component: "sheets", Name: name, Target: spreadsheetID}
	return c.mw.Run(ctx, op, func(ctx context.Context) error {
		return c.exec.Execute(ctx, "", fn)
	})
}
