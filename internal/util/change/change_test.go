package change

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet(t *testing.T) {
	t.Parallel()

	var s Set
	assert.Equal(t, "no changes", s.Summary())

	var wg sync.WaitGroup
	for _, r := range []Record{
		{"vpc", Created}, {"subnet", Unchanged}, {"sg", Updated}, {"secret/cloudflared", Skipped},
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add(r.Resource, r.Action)
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, s.Changed())
	assert.Equal(t, "1 created, 1 updated, 1 unchanged, 1 skipped", s.Summary())
	assert.Equal(t, "secret/cloudflared", s.Records()[0].Resource)
	assert.True(t, Deleted.Mutating())
	assert.False(t, Skipped.Mutating())
}
