package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                       "/",
		"/metrics":               "/metrics",
		"/usrs":                  "/usrs",
		"/usrs/mia":              "/usrs/:id",
		"/usr/mia":               "/usr/:id",
		"/usr/mia/promote":       "/usr/:id/promote",
		"/usr/mia/promote/extra": "/usr/mia/promote/extra",
		"/orgs/acme":             "/orgs/:id",
		"/orgs/acme/usrs":        "/orgs/:id/usrs",
		"/orgs/acme/usrs/mia":    "/orgs/:id/usrs/:uid",
		"/invites/welcome-2025":  "/invites/:code",
		"/tokens?device=laptop":  "/tokens",
		"/invites/a/b":           "/invites/a/b",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
