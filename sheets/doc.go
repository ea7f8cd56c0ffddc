// Package sheets reads and writes Google Sheets with credentials kept in a
// secret.Manager.
//
// Two credential modes are supported. The OAuth user flow reads the client
// secret JSON from GSHEET_CLIENT_SECRET and a token from
// GSHEET_REFRESH_TOKEN; refreshed tokens are written back through the
// manager. The service account mode reads a JSON key from
// GSHEET_SERVICE_ACCOUNT and signs its own JWT assertions.
//
// Failures are classified: ErrUnavailable for network problems, ErrAuth
// for rejected or expired credentials, ErrSpreadsheetNotFound and
// ErrSheetNotFound for missing targets, and *APIError for everything else
// the API reports.
package sheets
