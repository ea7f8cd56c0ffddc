package sheets

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"

	"github.com/shimarch/smrkit/resilience"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"unauthorized", &googleapi.Error{Code: 401, Message: "expired"}, ErrAuth},
		{"forbidden", &googleapi.Error{Code: 403, Message: "no access"}, ErrAuth},
		{"not found", &googleapi.Error{Code: 404}, ErrSpreadsheetNotFound},
		{"refresh", &oauth2.RetrieveError{Response: &http.Response{Status: "400 Bad Request"}}, ErrAuth},
		{"network", &net.OpError{Op: "dial", Err: errors.New("refused")}, ErrUnavailable},
		{"timeout", &resilience.TimeoutError{}, ErrUnavailable},
		{"deadline", context.DeadlineExceeded, ErrUnavailable},
		{"already classified", ErrSheetNotFound, ErrSheetNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err, "id", "S"); !errors.Is(got, tt.want) {
				t.Fatalf("classify() = %v, want %v", got, tt.want)
			}
		})
	}

	var apiErr *APIError
	if err := classify(&googleapi.Error{Code: 429, Message: "quota"}, "id", ""); !errors.As(err, &apiErr) || apiErr.Code != 429 {
		t.Fatalf("classify(429) = %v, want *APIError", err)
	}
	if classify(nil, "", "") != nil {
		t.Fatal("classify(nil) should be nil")
	}
}
