package sheets

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/shimarch/smrkit/resilience"
)

var (
	// ErrAuthRequired means no usable token is stored; run the
	// authorization flow (smrkit sheets auth) first.
	ErrAuthRequired = errors.New("sheets: authorization required")

	// ErrAuth means the credentials were rejected, expired or revoked.
	ErrAuth = errors.New("sheets: authentication failed")

	// ErrInvalidCredentials means a stored client secret or key is malformed.
	ErrInvalidCredentials = errors.New("sheets: invalid credentials")

	// ErrUnavailable means the API could not be reached.
	ErrUnavailable = errors.New("sheets: api unavailable")

	ErrSpreadsheetNotFound = errors.New("sheets: spreadsheet not found")
	ErrSheetNotFound       = errors.New("sheets: sheet not found")

	// ErrInvalidData rejects update payloads that are not an array of
	// objects.
	ErrInvalidData = errors.New("sheets: data must be a list of objects")
)

// APIError is an error answer of the Sheets API that has no more specific
// classification.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sheets: api error %d: %s", e.Code, e.Message)
}

// classify maps err onto the package errors. spreadsheetID and sheet are
// only used for messages.
func classify(err error, spreadsheetID, sheet string) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{ErrAuthRequired, ErrAuth, ErrInvalidCredentials, ErrUnavailable, ErrSpreadsheetNotFound, ErrSheetNotFound, ErrInvalidData} {
		if errors.Is(err, known) {
			return err
		}
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return err
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		switch gErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %s", ErrAuth, gErr.Message)
		case http.StatusNotFound:
			return fmt.Errorf("%w: id %q", ErrSpreadsheetNotFound, spreadsheetID)
		}
		return &APIError{Code: gErr.Code, Message: gErr.Message}
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: refresh credentials: %w", ErrAuth, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, resilience.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if sheet != "" {
		return fmt.Errorf("sheets: unexpected error on %q/%q: %w", spreadsheetID, sheet, err)
	}
	return fmt.Errorf("sheets: unexpected error: %w", err)
}
