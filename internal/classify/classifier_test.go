package classify

import "testing"

func TestClassifyInternal(t *testing.T) {
	c := Default()

	for _, n := range []string{"1001", "9999", "0000", "10-01", "(10)01"} {
		if got := c.Classify(n); got != LabelInternal {
			t.Fatalf("Classify(%q) = %q, want %q", n, got, LabelInternal)
		}
	}
}

func TestClassifyHomeMobile(t *testing.T) {
	c := Default()

	cases := []string{
		"0501234567",   // national format
		"009665012345", // 00966 + 9 digits starting 5
		"+966501234567",
		"501234567", // already stripped 9-digit mobile
	}
	for _, n := range cases {
		if got := c.Classify(n); got != "Saudi Arabia Mobile" {
			t.Fatalf("Classify(%q) = %q, want Saudi Arabia Mobile", n, got)
		}
	}
}

func TestClassifyHomeLandline(t *testing.T) {
	c := Default()

	cases := []string{"011234567", "021234567", "071234567"}
	for _, n := range cases {
		if got := c.Classify(n); got != "Saudi Arabia Landline" {
			t.Fatalf("Classify(%q) = %q, want Saudi Arabia Landline", n, got)
		}
	}

	// Second digit outside the area-code set.
	if got := c.Classify("051234567"); got == "Saudi Arabia Landline" {
		t.Fatalf("051234567 must not classify as landline")
	}
	if got := c.Classify("081234567"); got == "Saudi Arabia Landline" {
		t.Fatalf("081234567 must not classify as landline")
	}
}

func TestClassifyInternational(t *testing.T) {
	c := Default()

	cases := map[string]string{
		"00442071234567": "United Kingdom",
		"+442071234567":  "United Kingdom",
		"0014155551234":  "United States / Canada",
		"0097150123456":  "United Arab Emirates",
		"00971501234":    "United Arab Emirates", // 971 wins over 97x via longest-first
		"009999123":      LabelInternationalOther,
	}
	for n, want := range cases {
		if got := c.Classify(n); got != want {
			t.Fatalf("Classify(%q) = %q, want %q", n, got, want)
		}
	}
}

func TestClassifyOverlappingCodesDeterministic(t *testing.T) {
	// "1" and "12" overlap; the longer code must always win regardless of
	// map iteration order.
	c := New(Plan{
		CountryName:          "Saudi Arabia",
		CountryCode:          "966",
		MobilePrefix:         "05",
		LandlineSecondDigits: "123467",
	}, map[string]string{
		"1":  "Short",
		"12": "Long",
	})

	for i := 0; i < 50; i++ {
		if got := c.Classify("0012345678901"); got != "Long" {
			t.Fatalf("iteration %d: Classify = %q, want Long", i, got)
		}
	}
}

func TestClassifyUnknown(t *testing.T) {
	c := Default()

	cases := []string{
		"",
		"---",   // digits-only normalization yields empty string
		"12345", // 5 digits, no rule applies
		"abc",
	}
	for _, n := range cases {
		if got := c.Classify(n); got != LabelUnknown {
			t.Fatalf("Classify(%q) = %q, want %q", n, got, LabelUnknown)
		}
	}
}
