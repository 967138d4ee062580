package tokens

import (
	"errors"
	"sync"
	"testing"

	"github.com/pkoukk/tiktoken-go"
	"github.com/stretchr/testify/assert"
)

func offlineCounter(calls *int) *Counter {
	c := New("")
	c.load = func(string) (*tiktoken.Tiktoken, error) {
		*calls++
		return nil, errors.New("offline")
	}
	return c
}

func TestNew_DefaultEncoding(t *testing.T) {
	assert.Equal(t, DefaultEncoding, New("").encoding)
	assert.Equal(t, "p50k_base", New("p50k_base").encoding)
}

func TestCount_Empty(t *testing.T) {
	calls := 0
	c := offlineCounter(&calls)
	assert.Equal(t, 0, c.Count(""))
	assert.Equal(t, 0, calls)
}

func TestCount_FallsBackToEstimate(t *testing.T) {
	calls := 0
	c := offlineCounter(&calls)

	assert.Equal(t, 3, c.Count("twelve chars"))
	assert.Equal(t, 1, c.Count("a"))
	assert.Equal(t, 1, calls, "encoding load is attempted once")
}

func TestCount_ConcurrentUse(t *testing.T) {
	calls := 0
	c := offlineCounter(&calls)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, 2, c.Count("eight ch"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, calls)
}

func TestEstimate(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abcd", 1},
		{"abcde", 2},
		{"héllo wörld", 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Estimate(tt.text), tt.text)
	}
}
