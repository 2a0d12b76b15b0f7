package ratelimit

import (
	"testing"
	"time"
)

func TestTokenBucketExhaustsAndRefills(t *testing.T) {
	l := New(Config{RPS: 1, Burst: 2})
	now := time.Now()

	for i := 0; i < 2; i++ {
		if dec := l.AcquireRequest("p", now); !dec.Allowed {
			t.Fatalf("request %d denied", i)
		}
	}
	dec := l.AcquireRequest("p", now)
	if dec.Allowed {
		t.Fatal("third request should be denied")
	}
	if dec.RetryAfter < 1 {
		t.Errorf("RetryAfter = %d", dec.RetryAfter)
	}

	if dec := l.AcquireRequest("p", now.Add(1500*time.Millisecond)); !dec.Allowed {
		t.Error("request after refill denied")
	}
}

func TestRequestsUnlimitedWhenDisabled(t *testing.T) {
	l := New(Config{})
	now := time.Now()
	for i := 0; i < 100; i++ {
		if dec := l.AcquireRequest("p", now); !dec.Allowed {
			t.Fatal("disabled limiter denied a request")
		}
	}
}

func TestSessionConcurrencyCap(t *testing.T) {
	l := New(Config{MaxConcurrentSessions: 1})
	now := time.Now()

	first := l.AcquireSession("p", now)
	if !first.Allowed {
		t.Fatal("first session denied")
	}
	if dec := l.AcquireSession("p", now); dec.Allowed {
		t.Fatal("second concurrent session should be denied")
	}
	if dec := l.AcquireSession("other", now); !dec.Allowed {
		t.Fatal("other principal should not be affected")
	}

	first.Permit.Release()
	first.Permit.Release() // double release is harmless
	if dec := l.AcquireSession("p", now); !dec.Allowed {
		t.Fatal("session after release denied")
	}
}

func TestPrincipalKeyHidesAPIKey(t *testing.T) {
	key := PrincipalKeyFromAPIKey("secret-key")
	if key == "secret-key" || len(key) != 2+32 {
		t.Errorf("key = %q", key)
	}
	if key != PrincipalKeyFromAPIKey("secret-key") {
		t.Error("key derivation not stable")
	}
}
