package validate

import (
	"strings"
	"testing"
)

func TestRUT(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{in: "12345678-5", want: "12345678-5", ok: true},
		{in: "12.345.678-5", want: "12345678-5", ok: true},
		{in: "123456785", want: "12345678-5", ok: true},
		{in: "012.345.678-5", want: "12345678-5", ok: true},
		{in: "00012345678-5", ok: false},
		{in: "0-0", want: "0-0", ok: true},
		{in: "12345678-4", ok: false},
		{in: "11111111-1", want: "11111111-1", ok: true},
		{in: "10000013-k", want: "10000013-K", ok: true},
		{in: "10000013-0", ok: false},
		{in: "10000004-0", want: "10000004-0", ok: true},
		{in: "1234X678-5", ok: false},
		{in: "5", ok: false},
		{in: "", ok: false},
	}

	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, ok := RUT(tc.in)
			if ok != tc.ok {
				t.Fatalf("RUT(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			}
			if got != tc.want {
				t.Fatalf("RUT(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestRUTCheckDigit(t *testing.T) {
	cases := map[string]byte{
		"12345678": '5',
		"11111111": '1',
		"7654321":  '6',
		"10000013": 'K',
		"10000004": '0',
	}
	for body, want := range cases {
		if got := RUTCheckDigit(body); got != want {
			t.Errorf("RUTCheckDigit(%q) = %q, want %q", body, got, want)
		}
	}
}

func TestEmail(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"ana@tienda.cl", true},
		{" Ana.Perez+promo@Tienda.CL ", true},
		{"ana@tienda", false},
		{"@tienda.cl", false},
		{"ana tienda.cl", false},
		{"", false},
	}
	for _, tc := range cases {
		if _, ok := Email(tc.in); ok != tc.want {
			t.Errorf("Email(%q) = %v, want %v", tc.in, ok, tc.want)
		}
	}

	got, _ := Email(" Ana@Tienda.cl ")
	if got != "Ana@Tienda.cl" {
		t.Fatalf("expected trimmed email with original case, got %q", got)
	}
}

func TestPassword(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"Secret1", true},
		{"Abc12", false},
		{"secret1", false},
		{"Secret", false},
		{"ÑANDU99", true},
		{"Secret1" + strings.Repeat("x", MaxPasswordBytes-7), true},
		{"Secret1" + strings.Repeat("x", MaxPasswordBytes-6), false},
	}
	for _, tc := range cases {
		if got := Password(tc.in); got != tc.want {
			t.Errorf("Password(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestPasswordTooLong(t *testing.T) {
	if PasswordTooLong(strings.Repeat("A", MaxPasswordBytes)) {
		t.Fatal("72 bytes must be accepted")
	}
	// Ñ занимает два байта, поэтому 37 символов уже превышают предел.
	if !PasswordTooLong(strings.Repeat("Ñ", 37)) {
		t.Fatal("limit is counted in bytes, not runes")
	}
}
