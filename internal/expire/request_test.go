package expire

import (
	"slices"
	"testing"
)

func TestParseRequest(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		args []string
		want Request
	}{
		{"no args", nil, Sweep{}},
		{"empty mode", []string{""}, Sweep{}},
		{"delete", []string{"delete"}, Delete{}},
		{"user id", []string{"42"}, ExpireUser{UserID: 42}},
		{"zero user id", []string{"0"}, Sweep{}},
		{"negative user id", []string{"-3"}, Sweep{}},
		{"hook with name", []string{"hook", "photos"}, RunHook{Name: "photos"}},
		{"hook without name", []string{"hook"}, Sweep{}},
		{"hook with empty name", []string{"hook", ""}, Sweep{}},
		{"unknown mode", []string{"purge"}, Sweep{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ParseRequest(tt.args); got != tt.want {
				t.Errorf("ParseRequest(%q) = %#v, want %#v", tt.args, got, tt.want)
			}
		})
	}
}

func TestArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		req  Request
		want []string
	}{
		{Sweep{}, nil},
		{Delete{}, []string{"delete"}},
		{ExpireUser{UserID: 7}, []string{"7"}},
		{RunHook{Name: "audit"}, []string{"hook", "audit"}},
	}
	for _, tt := range tests {
		got := Args(tt.req)
		if !slices.Equal(got, tt.want) {
			t.Errorf("Args(%#v) = %q, want %q", tt.req, got, tt.want)
		}
		if back := ParseRequest(got); back != tt.req {
			t.Errorf("ParseRequest(Args(%#v)) = %#v", tt.req, back)
		}
	}
}

func TestRequestKinds(t *testing.T) {
	t.Parallel()

	kinds := map[string]Request{
		"sweep":  Sweep{},
		"delete": Delete{},
		"user":   ExpireUser{UserID: 1},
		"hook":   RunHook{Name: "x"},
	}
	for want, req := range kinds {
		if got := req.Kind(); got != want {
			t.Errorf("%T.Kind() = %q, want %q", req, got, want)
		}
	}
}
