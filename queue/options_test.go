//nolint:paralleltest,testpackage // Tests need access to unexported functions
package queue

import (
	"strings"
	"testing"
	"time"
)

func TestNewOptions_Defaults(t *testing.T) {
	opts := newOptions()

	tests := []struct {
		name     string
		got      any
		expected any
	}{
		{"visibilityTimeout", opts.visibilityTimeout, 60 * time.Second},
		{"extensionWindow", opts.extensionWindow, time.Duration(0)},
		{"renewalInterval", opts.renewalInterval, 45 * time.Second},
		{"pollBackoff", opts.pollBackoff, 5 * time.Second},
		{"errorBackoff", opts.errorBackoff, 5 * time.Second},
		{"maxLeaseExtension", opts.maxLeaseExtension, time.Duration(0)},
		{"window", opts.window(), 60 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, tt.got)
			}
		})
	}

	if opts.requestOptions == nil {
		t.Error("expected default request options to be set")
	}

	if err := opts.validate(); err != nil {
		t.Errorf("expected defaults to be valid, got %v", err)
	}
}

func TestWindow_UsesExtensionWindowWhenSet(t *testing.T) {
	opts := newOptions()
	WithExtensionWindow(90 * time.Second)(opts)

	if opts.window() != 90*time.Second {
		t.Errorf("expected window 90s, got %v", opts.window())
	}
}

func TestValidate_Options(t *testing.T) {
	tests := []struct {
		name    string
		opts    []Option
		wantErr string
	}{
		{"defaults", nil, ""},
		{"visibility too short", []Option{WithVisibilityTimeout(500 * time.Millisecond)}, "visibility timeout"},
		{"visibility too long", []Option{WithVisibilityTimeout(13 * time.Hour)}, "visibility timeout"},
		{"negative extension window", []Option{WithExtensionWindow(-time.Second)}, "extension window"},
		{"zero renewal interval", []Option{WithRenewalInterval(0)}, "renewal interval must be greater than zero"},
		{"renewal equal to visibility", []Option{WithRenewalInterval(60 * time.Second)}, "shorter than the visibility timeout"},
		{"renewal longer than visibility", []Option{WithRenewalInterval(90 * time.Second)}, "shorter than the visibility timeout"},
		{
			"renewal longer than extension window",
			[]Option{WithExtensionWindow(30 * time.Second)},
			"shorter than the extension window",
		},
		{
			"extension window longer than renewal",
			[]Option{WithExtensionWindow(50 * time.Second)},
			"",
		},
		{"negative poll backoff", []Option{WithPollBackoff(-time.Second)}, "poll backoff"},
		{"zero poll backoff", []Option{WithPollBackoff(0)}, ""},
		{"negative error backoff", []Option{WithErrorBackoff(-time.Second)}, "error backoff"},
		{"negative max extension", []Option{WithMaxLeaseExtension(-time.Second)}, "max lease extension must be non-negative"},
		{"max extension below visibility", []Option{WithMaxLeaseExtension(30 * time.Second)}, "must not be shorter"},
		{"max extension", []Option{WithMaxLeaseExtension(10 * time.Minute)}, ""},
		{
			"invalid request options",
			[]Option{WithRequestOptions(&RequestOptions{Timeout: -time.Second})},
			"invalid request options",
		},
		{"nil request options", []Option{WithRequestOptions(nil)}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := newOptions()
			for _, o := range tt.opts {
				o(opts)
			}

			err := opts.validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("expected no error, got %v", err)
				}
				return
			}

			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tt.wantErr)
			}

			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}
