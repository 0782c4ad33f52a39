package llm

import "testing"

func TestCheckBaseURLRejectsLocalTargetsByDefault(t *testing.T) {
	for _, raw := range []string{
		"https://localhost/v1",
		"https://api.localhost/v1",
		"https://printer.local/v1",
		"https://127.0.0.1/v1",
		"https://10.0.0.5/v1",
		"https://[::1]/v1",
		"https://[fe80::1%25eth0]/v1",
		"https://0.0.0.0/v1",
	} {
		if err := checkBaseURL(raw, false); err == nil {
			t.Fatalf("expected %s to be rejected", raw)
		}
	}
}

func TestCheckBaseURLSchemes(t *testing.T) {
	if err := checkBaseURL("https://api.openai.com/v1", false); err != nil {
		t.Fatalf("expected public https url to pass: %v", err)
	}
	if err := checkBaseURL("http://api.openai.com/v1", false); err == nil {
		t.Fatal("expected plain http to be rejected")
	}
	if err := checkBaseURL("ftp://api.openai.com/v1", true); err == nil {
		t.Fatal("expected ftp to be rejected")
	}
	if err := checkBaseURL("https:///v1", false); err == nil {
		t.Fatal("expected missing host to be rejected")
	}
}

func TestCheckBaseURLAllowLocal(t *testing.T) {
	for _, raw := range []string{
		"http://localhost:11434/v1",
		"http://127.0.0.1:8000/v1",
		"https://192.168.1.20/v1",
	} {
		if err := checkBaseURL(raw, true); err != nil {
			t.Fatalf("expected %s to pass with local endpoints allowed: %v", raw, err)
		}
	}
}

func TestCheckBaseURLRejectsUnroutableEvenWhenLocalAllowed(t *testing.T) {
	for _, raw := range []string{
		"http://0.0.0.0:8000/v1",
		"http://[::]:8000/v1",
		"http://224.0.0.1/v1",
		"http://[ff02::1]/v1",
		"http://[::ffff:0.0.0.0]/v1",
	} {
		if err := checkBaseURL(raw, true); err == nil {
			t.Fatalf("expected %s to be rejected", raw)
		}
	}
}
