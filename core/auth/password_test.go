package auth

import "testing"

func TestPasswordRoundTrip(t *testing.T) {
	h, err := HashPassword("Correct!Horse9Battery", "pepper-a")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	ok, err := VerifyPassword("Correct!Horse9Battery", "pepper-a", h)
	if err != nil || !ok {
		t.Fatalf("verify: ok=%v err=%v", ok, err)
	}
	ok, err = VerifyPassword("Wrong!Horse9Battery", "pepper-a", h)
	if err != nil || ok {
		t.Fatalf("wrong password accepted")
	}
	ok, err = VerifyPassword("Correct!Horse9Battery", "pepper-b", h)
	if err != nil || ok {
		t.Fatalf("wrong pepper accepted")
	}
}

func TestPasswordSaltVaries(t *testing.T) {
	a := MustHashPassword("Same!Input9Twice", "p")
	b := MustHashPassword("Same!Input9Twice", "p")
	if a.Salt == b.Salt || a.Hash == b.Hash {
		t.Fatal("expected distinct salt and hash per call")
	}
}

func TestParsePasswordHash(t *testing.T) {
	if _, err := ParsePasswordHash("", "salt"); err == nil {
		t.Fatal("empty hash accepted")
	}
	if _, err := ParsePasswordHash("hash", ""); err == nil {
		t.Fatal("empty salt accepted")
	}
}
