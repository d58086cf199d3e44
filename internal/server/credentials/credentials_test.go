package credentials

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLease_ExpiresAt(t *testing.T) {
	issued := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	l := &Lease{IssuedAt: issued, TTL: time.Hour}
	assert.Equal(t, issued.Add(time.Hour), l.ExpiresAt())

	never := &Lease{IssuedAt: issued}
	assert.True(t, never.ExpiresAt().IsZero())
}

func TestStore(t *testing.T) {
	s := NewStore()
	assert.Nil(t, s.Current())

	_, ok := s.DatabaseCredential()
	assert.False(t, ok)

	s.Set(&Lease{Token: "t1"})
	assert.Equal(t, "t1", s.Current().Token)
	_, ok = s.DatabaseCredential()
	assert.False(t, ok)

	s.Set(&Lease{Token: "t2", Database: &DatabaseCredential{Username: "u", Password: "p"}})
	cred, ok := s.DatabaseCredential()
	assert.True(t, ok)
	assert.Equal(t, DatabaseCredential{Username: "u", Password: "p"}, cred)
}

func TestStore_ConcurrentReaders(t *testing.T) {
	s := NewStore()
	s.Set(&Lease{Token: "initial"})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				assert.NotNil(t, s.Current())
			}
		}()
	}
	for j := 0; j < 100; j++ {
		s.Set(&Lease{Token: "next"})
	}
	wg.Wait()
	assert.Equal(t, "next", s.Current().Token)
}
